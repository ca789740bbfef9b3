package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsManager_Counters(t *testing.T) {
	m := NewMetricsManager("exchange-service")

	m.ProposalTransition("price", "accepted")
	m.ProposalTransition("price", "accepted")
	m.ExchangeTransition("completado")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProposalTransitionsTotal.WithLabelValues("price", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExchangeTransitionsTotal.WithLabelValues("completado")))
}

func TestMetricsManager_NilSafe(t *testing.T) {
	var m *MetricsManager
	assert.NotPanics(t, func() {
		m.ProposalTransition("price", "pending")
		m.ExchangeTransition("aceptado")
		m.MessageAppended("text")
		m.NotificationFailed("nats")
	})
}

func TestNewMetricsServer_ServesRegistry(t *testing.T) {
	m := NewMetricsManager("exchange-service")
	m.MessageAppended("text")

	srv := NewMetricsServer("0", logger.NewNop(), m.Registry)
	require.NotNil(t, srv)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "exchange_service_messages_appended_total"))
}

func TestNewMetricsServer_DisabledWithoutPort(t *testing.T) {
	assert.Nil(t, NewMetricsServer("", logger.NewNop(), NewMetricsManager("svc").Registry))
}
