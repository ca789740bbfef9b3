package mongodb

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/mongo"
)

// RetryPolicy bounds transparent retries of reads. Writes are never retried
// here; a lost write surfaces to the caller.
type RetryPolicy struct {
	Attempts        uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used when the configured policy is zero.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, InitialInterval: 50 * time.Millisecond, MaxInterval: 500 * time.Millisecond}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts == 0 {
		return DefaultRetryPolicy
	}
	return p
}

// read runs op, retrying network and timeout failures with exponential backoff.
// Any other error is returned as is on the first attempt.
func (p RetryPolicy) read(ctx context.Context, op func() error) error {
	p = p.normalized()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.MaxElapsedTime = 0

	// WithMaxRetries counts retries, not attempts.
	b := backoff.WithContext(backoff.WithMaxRetries(exp, p.Attempts-1), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err == nil || isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b)
}

func isTransient(err error) bool {
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err)
}
