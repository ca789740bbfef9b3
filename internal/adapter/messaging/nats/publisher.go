package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/config"
	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("exchange-service/nats-publisher")

const (
	maxReconnects = 10
	reconnectWait = 2 * time.Second
)

// Publisher publishes domain events as JSON to "<prefix>.<event kind>".
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *logger.Logger
}

// eventPayload is the wire form of domain.Event.
type eventPayload struct {
	Kind       string         `json:"kind"`
	ActorID    string         `json:"actor_id,omitempty"`
	TargetID   string         `json:"target_id,omitempty"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

func NewPublisher(cfg config.NATSConfig, log *logger.Logger, appName string) (*Publisher, error) {
	l := log.Named("NATSPublisher")
	l.Info("NATS Publisher: connecting...", zap.String("url", cfg.URL))

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts := []nats.Option{
		nats.Name(fmt.Sprintf("%s NATS Publisher", appName)),
		nats.Timeout(timeout),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			l.Error("NATS error", zap.String("subject", subject), zap.Error(err))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			l.Info("NATS connection closed")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			l.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			l.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		l.Error("NATS Publisher: failed to connect", zap.String("url", cfg.URL), zap.Error(err))
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	l.Info("NATS Publisher: successfully connected", zap.String("url", conn.ConnectedUrl()))

	return &Publisher{conn: conn, prefix: cfg.SubjectPrefix, logger: l}, nil
}

// Subject returns the subject an event of this kind is published on.
func Subject(prefix string, kind domain.EventKind) string {
	if prefix == "" {
		return string(kind)
	}
	return prefix + "." + string(kind)
}

func encodeEvent(ev domain.Event) ([]byte, error) {
	return json.Marshal(eventPayload{
		Kind:       string(ev.Kind),
		ActorID:    ev.ActorID,
		TargetID:   ev.TargetID,
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		OccurredAt: ev.OccurredAt,
		Data:       ev.Data,
	})
}

// Notify implements domain.Notifier.
func (p *Publisher) Notify(ctx context.Context, ev domain.Event) error {
	subject := Subject(p.prefix, ev.Kind)
	ctx, span := tracer.Start(ctx, "NATS.Publish."+string(ev.Kind))
	defer span.End()
	span.SetAttributes(attribute.String("messaging.destination", subject), attribute.String("entity.id", ev.EntityID))

	data, err := encodeEvent(ev)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal event %s: %w", ev.Kind, err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	otel.GetTextMapPropagator().Inject(ctx, HeaderCarrier(msg.Header))

	if err := p.conn.PublishMsg(msg); err != nil {
		p.logger.Error("NATS Publisher: failed to publish", zap.String("subject", subject), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	p.logger.Debug("NATS Publisher: event published", zap.String("subject", subject), zap.Int("data_size_bytes", len(data)))
	return nil
}

// HeaderCarrier adapts nats.Header to the OpenTelemetry TextMapCarrier.
type HeaderCarrier nats.Header

func (c HeaderCarrier) Get(key string) string {
	return nats.Header(c).Get(key)
}

func (c HeaderCarrier) Set(key string, value string) {
	nats.Header(c).Set(key, value)
}

func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.conn == nil || p.conn.IsClosed() {
		return
	}
	p.logger.Info("NATS Publisher: closing connection...")
	if err := p.conn.Drain(); err != nil {
		p.logger.Error("NATS Publisher: failed to drain connection", zap.Error(err))
	}
	p.conn.Close()
}
