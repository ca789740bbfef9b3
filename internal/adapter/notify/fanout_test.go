package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/angola031/Ecoswap-sub003/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func TestFanout_DeliversToAllChannels(t *testing.T) {
	bus, mail := &recordingNotifier{}, &recordingNotifier{}
	f := NewFanout(nil, logger.NewNop(), Channel{"nats", bus}, Channel{"email", mail}, Channel{"disabled", nil})
	require.Equal(t, 2, f.Len())

	ev := domain.Event{Kind: domain.EventRatingCreated, EntityID: "r1"}
	require.NoError(t, f.Notify(context.Background(), ev))

	assert.Equal(t, []domain.Event{ev}, bus.events)
	assert.Equal(t, []domain.Event{ev}, mail.events)
}

func TestFanout_FailureDoesNotStopOtherChannels(t *testing.T) {
	m := metrics.NewMetricsManager("exchange-service-test")
	bus := &recordingNotifier{err: errors.New("nats: connection closed")}
	mail := &recordingNotifier{}
	f := NewFanout(m, logger.NewNop(), Channel{"nats", bus}, Channel{"email", mail})

	err := f.Notify(context.Background(), domain.Event{Kind: domain.EventProposalCreated})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats: nats: connection closed")
	assert.Len(t, mail.events, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationFailures.WithLabelValues("nats")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.NotificationFailures.WithLabelValues("email")))
}

func TestFanout_NoChannels(t *testing.T) {
	f := NewFanout(nil, logger.NewNop())
	assert.NoError(t, f.Notify(context.Background(), domain.Event{Kind: domain.EventMessageCreated}))
}
