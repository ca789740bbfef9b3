package handler

import (
	"net/http"

	"github.com/angola031/Ecoswap-sub003/internal/adapter/http/middleware"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/angola031/Ecoswap-sub003/internal/platform/metrics"
	"github.com/angola031/Ecoswap-sub003/internal/usecase"
	"github.com/go-chi/chi/v5"
)

// UserHandler serves the per-user views: received ratings and donations.
type UserHandler struct {
	responder
	ratings   RatingService
	donations DonationService
}

func NewUserHandler(ratings RatingService, donations DonationService, m *metrics.MetricsManager, log *logger.Logger) *UserHandler {
	return &UserHandler{
		responder: responder{logger: log.Named("UserHTTPHandler"), metrics: m},
		ratings:   ratings,
		donations: donations,
	}
}

func (h *UserHandler) HandleListRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := h.ratings.ListRatingsForUser(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]ratingResponse, 0, len(ratings))
	for _, rt := range ratings {
		out = append(out, toRatingResponse(rt))
	}
	h.respondWithJSON(w, http.StatusOK, out)
}

func (h *UserHandler) HandleRatingSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.ratings.RatingSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, ratingSummaryResponse{
		UserID:         s.UserID,
		Average:        s.Average,
		Count:          s.Count,
		RecommendRatio: s.RecommendRatio,
	})
}

func (h *UserHandler) HandleAvailableDonations(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	res, err := h.donations.ListAvailableDonations(r.Context(), middleware.UserIDFromContext(r.Context()), page, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toDonationPageResponse(res))
}

func (h *UserHandler) HandleSubmitDonationRequest(w http.ResponseWriter, r *http.Request) {
	var req donationRequestRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	p, err := h.donations.SubmitDonationRequest(r.Context(), usecase.DonationRequestInput{
		RequesterID:   middleware.UserIDFromContext(r.Context()),
		ProductID:     req.ProductID,
		Message:       req.Message,
		Organization:  req.Organization,
		IntendedUse:   req.IntendedUse,
		Beneficiaries: req.Beneficiaries,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, toProposalResponse(p))
}

func (h *UserHandler) HandleMyDonationRequests(w http.ResponseWriter, r *http.Request) {
	status, err := proposalStatusParam(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	ps, err := h.donations.ListMyDonationRequests(r.Context(), middleware.UserIDFromContext(r.Context()), status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toProposalList(ps))
}

func (h *UserHandler) HandleDonationsReceived(w http.ResponseWriter, r *http.Request) {
	es, err := h.donations.ListDonationsReceived(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, toExchangeList(es))
}
