package metrics

import (
	"net/http"
	"strings"

	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsManager holds the service's Prometheus collectors.
type MetricsManager struct {
	Registry                 *prometheus.Registry
	ProposalTransitionsTotal *prometheus.CounterVec   // labels: kind, status
	ExchangeTransitionsTotal *prometheus.CounterVec   // labels: status
	MessagesAppendedTotal    *prometheus.CounterVec   // labels: kind
	NotificationFailures     *prometheus.CounterVec   // labels: channel
	APIErrorsTotal           *prometheus.CounterVec   // labels: route, error_kind
	APILatency               *prometheus.HistogramVec // labels: route, method
}

// NewMetricsManager initializes and registers the collectors on a private registry.
func NewMetricsManager(serviceName string) *MetricsManager {
	namespace := strings.ReplaceAll(serviceName, "-", "_")
	registry := prometheus.NewRegistry()

	m := &MetricsManager{
		Registry: registry,
		ProposalTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposal_transitions_total",
			Help:      "Proposal state transitions by kind and resulting status.",
		}, []string{"kind", "status"}),
		ExchangeTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_transitions_total",
			Help:      "Exchange record transitions by resulting status.",
		}, []string{"status"}),
		MessagesAppendedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_appended_total",
			Help:      "Messages appended to conversations by kind.",
		}, []string{"kind"}),
		NotificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notification deliveries that failed, by channel.",
		}, []string{"channel"}),
		APIErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_errors_total",
			Help:      "API errors by route and error kind.",
		}, []string{"route", "error_kind"}),
		APILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_latency_seconds",
			Help:      "Latency of API requests by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	registry.MustRegister(
		m.ProposalTransitionsTotal,
		m.ExchangeTransitionsTotal,
		m.MessagesAppendedTotal,
		m.NotificationFailures,
		m.APIErrorsTotal,
		m.APILatency,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// ProposalTransition records a proposal reaching status.
func (m *MetricsManager) ProposalTransition(kind, status string) {
	if m == nil {
		return
	}
	m.ProposalTransitionsTotal.WithLabelValues(kind, status).Inc()
}

// ExchangeTransition records an exchange reaching status.
func (m *MetricsManager) ExchangeTransition(status string) {
	if m == nil {
		return
	}
	m.ExchangeTransitionsTotal.WithLabelValues(status).Inc()
}

func (m *MetricsManager) MessageAppended(kind string) {
	if m == nil {
		return
	}
	m.MessagesAppendedTotal.WithLabelValues(kind).Inc()
}

func (m *MetricsManager) NotificationFailed(channel string) {
	if m == nil {
		return
	}
	m.NotificationFailures.WithLabelValues(channel).Inc()
}

// APIRequest records the latency of one API request.
func (m *MetricsManager) APIRequest(route, method string, seconds float64) {
	if m == nil {
		return
	}
	m.APILatency.WithLabelValues(route, method).Observe(seconds)
}

func (m *MetricsManager) APIError(route, kind string) {
	if m == nil {
		return
	}
	m.APIErrorsTotal.WithLabelValues(route, kind).Inc()
}

// NewMetricsServer returns the HTTP server exposing /metrics, or nil when port is empty.
func NewMetricsServer(port string, appLogger *logger.Logger, registry *prometheus.Registry) *http.Server {
	if port == "" {
		appLogger.Info("Prometheus metrics port not configured, metrics server disabled.")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	appLogger.Info("Prometheus metrics server configured", zap.String("port", port), zap.String("path", "/metrics"))
	return &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}
}
