package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/angola031/Ecoswap-sub003/internal/adapter/http/middleware"
	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/angola031/Ecoswap-sub003/internal/platform/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StatusForKind maps a domain error kind to its HTTP status.
func StatusForKind(kind string) int {
	switch kind {
	case "NotAuthorized", "NotParticipant":
		return http.StatusForbidden
	case "InvalidState", "DuplicatePending", "ConcurrentModification", "IncompleteValidation", "AlreadyRated", "Conflict":
		return http.StatusConflict
	case "NotFound":
		return http.StatusNotFound
	case "ValidationError", "InvalidContent":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(kind string, err error) string {
	switch kind {
	case "ConcurrentModification":
		return "the other user already answered; refresh and try again"
	case "Internal":
		return "internal error, please retry later"
	}
	return err.Error()
}

// responder writes JSON responses and maps domain errors.
type responder struct {
	logger  *logger.Logger
	metrics *metrics.MetricsManager
}

func (h responder) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

func (h responder) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.ErrorKind(err)
	code := StatusForKind(kind)
	route := ""
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		route = rctx.RoutePattern()
	}
	h.metrics.APIError(route, kind)

	fields := []zap.Field{
		zap.String("route", route),
		zap.String("kind", kind),
		zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
		zap.Error(err),
	}
	if code >= http.StatusInternalServerError {
		h.logger.Error("Request failed", fields...)
	} else {
		h.logger.Debug("Request rejected", fields...)
	}
	h.respondWithJSON(w, code, errorBody{Error: errorDetail{Kind: kind, Message: messageFor(kind, err)}})
}

// decodeAndValidate decodes a JSON body into dst and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err)
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		if e.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", e.Namespace(), e.Tag(), e.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Namespace(), e.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrValidation, key)
	}
	return v, nil
}

func queryBool(r *http.Request, key string, def bool) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", domain.ErrValidation, key)
	}
	return v, nil
}

func proposalStatusParam(r *http.Request) (*domain.ProposalStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, nil
	}
	s := domain.ProposalStatus(raw)
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: unknown proposal status %q", domain.ErrValidation, raw)
	}
	return &s, nil
}

func exchangeStatusParam(r *http.Request) (*domain.ExchangeStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, nil
	}
	s := domain.ExchangeStatus(raw)
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: unknown exchange status %q", domain.ErrValidation, raw)
	}
	return &s, nil
}
