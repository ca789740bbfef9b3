package handler

import (
	"net/http"

	"github.com/angola031/Ecoswap-sub003/internal/adapter/http/middleware"
	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/angola031/Ecoswap-sub003/internal/platform/metrics"
	"github.com/angola031/Ecoswap-sub003/internal/usecase"
	"github.com/go-chi/chi/v5"
)

type ProposalHandler struct {
	responder
	proposals ProposalService
}

func NewProposalHandler(proposals ProposalService, m *metrics.MetricsManager, log *logger.Logger) *ProposalHandler {
	return &ProposalHandler{
		responder: responder{logger: log.Named("ProposalHTTPHandler"), metrics: m},
		proposals: proposals,
	}
}

func (h *ProposalHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	role, err := usecase.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	status, err := proposalStatusParam(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	ps, err := h.proposals.ListForUser(r.Context(), middleware.UserIDFromContext(r.Context()), role, status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toProposalList(ps))
}

func (h *ProposalHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.proposals.GetProposal(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toProposalResponse(p))
}

func (h *ProposalHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	res, err := h.proposals.Accept(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toAcceptResponse(res))
}

func (h *ProposalHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if r.ContentLength != 0 {
		if err := decodeAndValidate(w, r, &req); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	p, err := h.proposals.Reject(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()), req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toProposalResponse(p))
}

func (h *ProposalHandler) HandleCounter(w http.ResponseWriter, r *http.Request) {
	var req counterRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	p, err := h.proposals.CounterPropose(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()), usecase.CounterInput{
		Kind:        domain.ProposalKind(req.Kind),
		Description: req.Description,
		Terms:       req.Terms.toDomain(),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, toProposalResponse(p))
}

func (h *ProposalHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	p, err := h.proposals.Cancel(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toProposalResponse(p))
}
