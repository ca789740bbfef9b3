package handler

import (
	"bufio"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/angola031/Ecoswap-sub003/internal/adapter/http/middleware"
	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/angola031/Ecoswap-sub003/internal/platform/metrics"
	"github.com/angola031/Ecoswap-sub003/internal/usecase"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const attachmentFormField = "file"

type ConversationHandler struct {
	responder
	conversations  ConversationService
	proposals      ProposalService
	maxUploadBytes int64
}

func NewConversationHandler(conversations ConversationService, proposals ProposalService, maxUploadBytes int64, m *metrics.MetricsManager, log *logger.Logger) *ConversationHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &ConversationHandler{
		responder:      responder{logger: log.Named("ConversationHTTPHandler"), metrics: m},
		conversations:  conversations,
		proposals:      proposals,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *ConversationHandler) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	conv, err := h.conversations.CreateOrGetConversation(r.Context(), middleware.UserIDFromContext(r.Context()), req.CounterpartID, req.ProductID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toConversationResponse(conv))
}

func (h *ConversationHandler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := queryBool(r, "active", true)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	convs, err := h.conversations.ListConversations(r.Context(), middleware.UserIDFromContext(r.Context()), activeOnly)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]conversationResponse, 0, len(convs))
	for _, c := range convs {
		out = append(out, toConversationResponse(c))
	}
	h.respondWithJSON(w, http.StatusOK, out)
}

func (h *ConversationHandler) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversations.GetConversation(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toConversationResponse(conv))
}

func (h *ConversationHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.conversations.DeactivateConversation(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context())); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	page, err := h.conversations.ListMessages(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := messagePageResponse{Messages: make([]messageResponse, 0, len(page.Messages)), NextCursor: page.NextCursor}
	for _, m := range page.Messages {
		resp.Messages = append(resp.Messages, toMessageResponse(m))
	}
	h.respondWithJSON(w, http.StatusOK, resp)
}

func (h *ConversationHandler) HandleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var req appendMessageRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	msg, err := h.conversations.AppendMessage(r.Context(), usecase.AppendMessageInput{
		ConversationID: chi.URLParam(r, "id"),
		SenderID:       middleware.UserIDFromContext(r.Context()),
		Kind:           domain.MessageKind(req.Kind),
		Content:        req.content(),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, toMessageResponse(msg))
}

// HandleUploadAttachment accepts a multipart form with the image under "file".
func (h *ConversationHandler) HandleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1024)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: invalid upload, maximum size is %d bytes: %v", domain.ErrValidation, h.maxUploadBytes, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(attachmentFormField)
	if err != nil {
		h.respondError(w, r, fmt.Errorf("%w: form field %q is required", domain.ErrValidation, attachmentFormField))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	reader := bufio.NewReader(file)
	if contentType == "" || contentType == "application/octet-stream" {
		sniff, _ := reader.Peek(512)
		contentType = http.DetectContentType(sniff)
	}

	msg, err := h.conversations.UploadAttachment(r.Context(), usecase.UploadAttachmentInput{
		ConversationID: chi.URLParam(r, "id"),
		SenderID:       middleware.UserIDFromContext(r.Context()),
		FileName:       filepath.Base(header.Filename),
		ContentType:    contentType,
		Data:           reader,
		Size:           header.Size,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.logger.Info("Attachment uploaded", zap.String("message_id", msg.ID), zap.Int64("size", header.Size))
	h.respondWithJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (h *ConversationHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	n, err := h.conversations.MarkRead(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()), req.UptoMessageID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]int64{"marked": n})
}

func (h *ConversationHandler) HandlePropose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	p, err := h.proposals.Propose(r.Context(), usecase.ProposeInput{
		ConversationID: chi.URLParam(r, "id"),
		ProposerID:     middleware.UserIDFromContext(r.Context()),
		ReceiverID:     req.ReceiverID,
		ExchangeID:     req.ExchangeID,
		ProductID:      req.ProductID,
		Kind:           domain.ProposalKind(req.Kind),
		Description:    req.Description,
		Terms:          req.Terms.toDomain(),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, toProposalResponse(p))
}

func (h *ConversationHandler) HandleListProposals(w http.ResponseWriter, r *http.Request) {
	status, err := proposalStatusParam(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	ps, err := h.proposals.ListByConversation(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()), status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toProposalList(ps))
}
