package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/angola031/Ecoswap-sub003/internal/platform/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolverFunc func(ctx context.Context, credential string) (string, error)

func (f resolverFunc) Resolve(ctx context.Context, credential string) (string, error) {
	return f(ctx, credential)
}

var staticResolver = resolverFunc(func(_ context.Context, credential string) (string, error) {
	switch credential {
	case "good":
		return "alice", nil
	case "broken":
		return "", errors.New("mongo unavailable")
	}
	return "", domain.ErrNotFound
})

func echoUser(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(UserIDFromContext(r.Context())))
}

func TestAuth(t *testing.T) {
	h := Auth(staticResolver, logger.NewNop())(http.HandlerFunc(echoUser))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantKind   string
		wantBody   string
	}{
		{name: "valid token", header: "Bearer good", wantStatus: http.StatusOK, wantBody: "alice"},
		{name: "lowercase scheme", header: "bearer good", wantStatus: http.StatusOK, wantBody: "alice"},
		{name: "missing header", wantStatus: http.StatusUnauthorized, wantKind: "Unauthenticated"},
		{name: "wrong scheme", header: "Basic Zm9vOmJhcg==", wantStatus: http.StatusUnauthorized, wantKind: "Unauthenticated"},
		{name: "unknown user", header: "Bearer stale", wantStatus: http.StatusUnauthorized, wantKind: "Unauthenticated"},
		{name: "directory down", header: "Bearer broken", wantStatus: http.StatusServiceUnavailable, wantKind: "Unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
			if tt.wantKind != "" {
				var body struct {
					Error struct {
						Kind string `json:"kind"`
					} `json:"error"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantKind, body.Error.Kind)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	m := metrics.NewMetricsManager("exchange-service-test")
	r := chi.NewRouter()
	r.Use(Metrics(m), Logger(logger.NewNop()), Tracing("exchange-service-test"))
	r.Get("/proposals/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/proposals/abc", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, testutil.CollectAndCount(m.APILatency, "exchange_service_test_api_request_latency_seconds"))
}
