package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/angola031/Ecoswap-sub003/internal/platform/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Channel is a named delivery target.
type Channel struct {
	Name     string
	Notifier domain.Notifier
}

// Fanout delivers every event to all channels concurrently. One failing
// channel does not stop the others.
type Fanout struct {
	channels []Channel
	metrics  *metrics.MetricsManager
	logger   *logger.Logger
}

func NewFanout(m *metrics.MetricsManager, log *logger.Logger, channels ...Channel) *Fanout {
	active := make([]Channel, 0, len(channels))
	for _, c := range channels {
		if c.Notifier != nil {
			active = append(active, c)
		}
	}
	return &Fanout{channels: active, metrics: m, logger: log.Named("NotifyFanout")}
}

// Len reports the number of configured channels.
func (f *Fanout) Len() int { return len(f.channels) }

// Notify implements domain.Notifier. The joined error names every failed channel.
func (f *Fanout) Notify(ctx context.Context, ev domain.Event) error {
	errs := make([]error, len(f.channels))
	var g errgroup.Group
	for i, c := range f.channels {
		i, c := i, c
		g.Go(func() error {
			if err := c.Notifier.Notify(ctx, ev); err != nil {
				f.metrics.NotificationFailed(c.Name)
				f.logger.Warn("Notification channel failed",
					zap.String("channel", c.Name),
					zap.String("kind", string(ev.Kind)),
					zap.Error(err))
				errs[i] = fmt.Errorf("%s: %w", c.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
