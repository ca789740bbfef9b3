package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("exchange-service/usecase")

// Role filters listings by the caller's side of a proposal or exchange.
type Role string

const (
	RoleAny      Role = ""
	RoleProposed Role = "proposed"
	RoleReceived Role = "received"
)

// ParseRole accepts "", "any", "proposed" and "received".
func ParseRole(s string) (Role, error) {
	switch s {
	case "", "any":
		return RoleAny, nil
	case string(RoleProposed):
		return RoleProposed, nil
	case string(RoleReceived):
		return RoleReceived, nil
	}
	return RoleAny, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, s)
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

func utcNow() time.Time { return time.Now().UTC() }

func encodeCursor(seq int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(seq, 10)))
}

func decodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed cursor", domain.ErrValidation)
	}
	seq, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || seq <= 0 {
		return 0, fmt.Errorf("%w: malformed cursor", domain.ErrValidation)
	}
	return seq, nil
}

// retryOnConflict re-runs fn while it fails with ErrConcurrentModification.
// fn must re-read the entity it mutates on every attempt.
func retryOnConflict(ctx context.Context, attempts int, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(i); !errors.Is(err, domain.ErrConcurrentModification) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}
