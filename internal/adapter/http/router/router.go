package router

import (
	"net/http"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/adapter/http/handler"
	"github.com/angola031/Ecoswap-sub003/internal/adapter/http/middleware"
	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/angola031/Ecoswap-sub003/internal/platform/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 30 * time.Second

// Handlers groups the HTTP handlers mounted under /api/v1.
type Handlers struct {
	Conversations *handler.ConversationHandler
	Proposals     *handler.ProposalHandler
	Exchanges     *handler.ExchangeHandler
	Users         *handler.UserHandler
}

// New builds the service router. Everything except /healthz requires a bearer token.
func New(serviceName string, h Handlers, resolver domain.IdentityResolver, m *metrics.MetricsManager, log *logger.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.Recoverer,
		middleware.Tracing(serviceName),
		middleware.Logger(log),
		middleware.Metrics(m),
		chimw.Timeout(requestTimeout),
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(resolver, log))

		SetupConversationRoutes(r, h.Conversations)
		SetupProposalRoutes(r, h.Proposals)
		SetupExchangeRoutes(r, h.Exchanges)
		SetupUserRoutes(r, h.Users)
	})
	return r
}

func SetupConversationRoutes(r chi.Router, h *handler.ConversationHandler) {
	r.Post("/conversations", h.HandleCreateConversation)
	r.Get("/conversations", h.HandleListConversations)
	r.Route("/conversations/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGetConversation)
		r.Get("/messages", h.HandleListMessages)
		r.Post("/messages", h.HandleAppendMessage)
		r.Post("/attachments", h.HandleUploadAttachment)
		r.Post("/read", h.HandleMarkRead)
		r.Post("/deactivate", h.HandleDeactivate)
		r.Post("/proposals", h.HandlePropose)
		r.Get("/proposals", h.HandleListProposals)
	})
}

func SetupProposalRoutes(r chi.Router, h *handler.ProposalHandler) {
	r.Get("/proposals", h.HandleList)
	r.Route("/proposals/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Post("/accept", h.HandleAccept)
		r.Post("/reject", h.HandleReject)
		r.Post("/counter", h.HandleCounter)
		r.Post("/cancel", h.HandleCancel)
	})
}

func SetupExchangeRoutes(r chi.Router, h *handler.ExchangeHandler) {
	r.Post("/exchanges", h.HandlePropose)
	r.Get("/exchanges", h.HandleList)
	r.Route("/exchanges/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Post("/accept", h.HandleAccept)
		r.Post("/reject", h.HandleReject)
		r.Post("/cancel", h.HandleCancel)
		r.Put("/meeting", h.HandleUpdateMeeting)
		r.Put("/extra-amount", h.HandleSetExtraAmount)
		r.Post("/validations", h.HandleSubmitValidation)
		r.Post("/complete", h.HandleComplete)
		r.Post("/ratings", h.HandleSubmitRating)
	})
}

func SetupUserRoutes(r chi.Router, h *handler.UserHandler) {
	r.Get("/users/{id}/ratings", h.HandleListRatings)
	r.Get("/users/{id}/rating-summary", h.HandleRatingSummary)

	r.Get("/donations/available", h.HandleAvailableDonations)
	r.Post("/donations/requests", h.HandleSubmitDonationRequest)
	r.Get("/donations/requests/mine", h.HandleMyDonationRequests)
	r.Get("/donations/received", h.HandleDonationsReceived)
}
