package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"go.uber.org/zap"
)

// Auth resolves the bearer token through resolver and stores the user ID
// under UserIDCtxKey. Requests that do not resolve get 401.
func Auth(resolver domain.IdentityResolver, log *logger.Logger) func(http.Handler) http.Handler {
	l := log.Named("AuthMiddleware")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "authorization token is not provided")
				return
			}
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				l.Debug("Invalid authorization header format", zap.String("path", r.URL.Path))
				unauthorized(w, "authorization token format is invalid, expected 'Bearer <token>'")
				return
			}

			userID, err := resolver.Resolve(r.Context(), parts[1])
			if err != nil {
				if domain.ErrorKind(err) == "NotFound" {
					l.Debug("Credential rejected", zap.String("path", r.URL.Path), zap.Error(err))
					unauthorized(w, "token is invalid or the user no longer exists")
					return
				}
				l.Error("Identity resolution failed", zap.String("path", r.URL.Path), zap.Error(err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(errorEnvelope("Unavailable", "identity lookup failed, please retry"))
				return
			}

			ctx := context.WithValue(r.Context(), UserIDCtxKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="ecoswap"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorEnvelope("Unauthenticated", message))
}

func errorEnvelope(kind, message string) map[string]any {
	return map[string]any{"error": map[string]string{"kind": kind, "message": message}}
}
