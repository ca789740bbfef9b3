package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/adapter/http/middleware"
	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/angola031/Ecoswap-sub003/internal/platform/metrics"
	"github.com/angola031/Ecoswap-sub003/internal/usecase"
	"github.com/go-chi/chi/v5"
)

type ExchangeHandler struct {
	responder
	exchanges ExchangeService
	ratings   RatingService
}

func NewExchangeHandler(exchanges ExchangeService, ratings RatingService, m *metrics.MetricsManager, log *logger.Logger) *ExchangeHandler {
	return &ExchangeHandler{
		responder: responder{logger: log.Named("ExchangeHTTPHandler"), metrics: m},
		exchanges: exchanges,
		ratings:   ratings,
	}
}

func (h *ExchangeHandler) HandlePropose(w http.ResponseWriter, r *http.Request) {
	var req proposeExchangeRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	ex, err := h.exchanges.ProposeExchange(r.Context(), usecase.ProposeExchangeInput{
		ProposerID:           middleware.UserIDFromContext(r.Context()),
		ProductID:            req.ProductID,
		CounterpartProductID: req.CounterpartProductID,
		Message:              req.Message,
		ExtraAmount:          req.ExtraAmount,
		Conditions:           req.Conditions,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, toExchangeResponse(ex))
}

func (h *ExchangeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	role, err := usecase.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	status, err := exchangeStatusParam(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	es, err := h.exchanges.ListForUser(r.Context(), middleware.UserIDFromContext(r.Context()), role, status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toExchangeList(es))
}

func (h *ExchangeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ex, err := h.exchanges.GetExchange(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toExchangeResponse(ex))
}

func (h *ExchangeHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	ex, err := h.exchanges.Accept(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toExchangeResponse(ex))
}

func (h *ExchangeHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, h.exchanges.Reject)
}

func (h *ExchangeHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, h.exchanges.Cancel)
}

func (h *ExchangeHandler) withReason(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, exchangeID, actorID, reason string) (*domain.Exchange, error)) {
	var req reasonRequest
	if r.ContentLength != 0 {
		if err := decodeAndValidate(w, r, &req); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	ex, err := action(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()), req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toExchangeResponse(ex))
}

func (h *ExchangeHandler) HandleUpdateMeeting(w http.ResponseWriter, r *http.Request) {
	var req meetingPayload
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	ex, err := h.exchanges.UpdateMeeting(r.Context(), usecase.UpdateMeetingInput{
		ExchangeID: chi.URLParam(r, "id"),
		ActorID:    middleware.UserIDFromContext(r.Context()),
		Place:      req.Place,
		Date:       req.Date,
		Notes:      req.Notes,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toExchangeResponse(ex))
}

func (h *ExchangeHandler) HandleSetExtraAmount(w http.ResponseWriter, r *http.Request) {
	var req extraAmountRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	ex, err := h.exchanges.SetExtraAmount(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()), *req.Amount)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toExchangeResponse(ex))
}

func (h *ExchangeHandler) HandleSubmitValidation(w http.ResponseWriter, r *http.Request) {
	var req validationRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	at := time.Now().UTC()
	if req.At != nil {
		at = req.At.UTC()
	}
	ex, err := h.exchanges.SubmitValidation(r.Context(), usecase.SubmitValidationInput{
		ExchangeID: chi.URLParam(r, "id"),
		UserID:     middleware.UserIDFromContext(r.Context()),
		Succeeded:  *req.Succeeded,
		Comment:    req.Comment,
		At:         at,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toExchangeResponse(ex))
}

func (h *ExchangeHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ex, err := h.exchanges.Complete(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toExchangeResponse(ex))
}

func (h *ExchangeHandler) HandleSubmitRating(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}
	rating, err := h.ratings.SubmitRating(r.Context(), usecase.RatingInput{
		ExchangeID:     chi.URLParam(r, "id"),
		RaterID:        middleware.UserIDFromContext(r.Context()),
		Score:          req.Score,
		Comment:        req.Comment,
		Aspects:        req.Aspects,
		WouldRecommend: req.WouldRecommend,
		IsPublic:       isPublic,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, toRatingResponse(rating))
}
