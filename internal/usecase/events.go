package usecase

import (
	"context"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"go.uber.org/zap"
)

const notifyTimeout = 5 * time.Second

// eventDispatcher hands events to the notifier without blocking the caller.
type eventDispatcher struct {
	notifier domain.Notifier
	logger   *logger.Logger
}

func newEventDispatcher(notifier domain.Notifier, log *logger.Logger) *eventDispatcher {
	return &eventDispatcher{notifier: notifier, logger: log}
}

func (d *eventDispatcher) emit(ctx context.Context, ev domain.Event) {
	if d == nil || d.notifier == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	// Keeps the trace values, drops the request deadline.
	detached := context.WithoutCancel(ctx)
	go func() {
		nctx, cancel := context.WithTimeout(detached, notifyTimeout)
		defer cancel()
		if err := d.notifier.Notify(nctx, ev); err != nil {
			d.logger.Warn("Failed to deliver event",
				zap.Error(err),
				zap.String("kind", string(ev.Kind)),
				zap.String("entity_id", ev.EntityID))
		}
	}()
}
