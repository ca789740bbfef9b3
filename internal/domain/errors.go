package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that a referenced conversation, proposal, exchange, product or user does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrNotAuthorized indicates the actor attempted an action reserved for another role.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrNotParticipant indicates the actor is not one of the two parties.
	ErrNotParticipant = fmt.Errorf("%w: not a participant", ErrNotAuthorized)
	// ErrInvalidState indicates the current state does not permit the transition.
	ErrInvalidState = errors.New("invalid state")
	// ErrDuplicatePending indicates a pending proposal already exists in the same direction.
	ErrDuplicatePending = errors.New("a pending proposal already exists")
	// ErrConcurrentModification indicates an optimistic concurrency check failed.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrIncompleteValidation indicates completion was attempted before both parties validated.
	ErrIncompleteValidation = errors.New("incomplete validation")
	// ErrAlreadyRated indicates the rater already rated this exchange.
	ErrAlreadyRated = errors.New("already rated")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation error")
	// ErrInvalidContent indicates malformed message content.
	ErrInvalidContent = fmt.Errorf("%w: invalid content", ErrValidation)
	// ErrConflict is returned by repositories on unique-key races the caller resolves itself.
	ErrConflict = errors.New("entity already exists")
)

// ErrorKind names the most specific error kind in err's chain, or "Internal".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotParticipant):
		return "NotParticipant"
	case errors.Is(err, ErrNotAuthorized):
		return "NotAuthorized"
	case errors.Is(err, ErrInvalidContent):
		return "InvalidContent"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrInvalidState):
		return "InvalidState"
	case errors.Is(err, ErrDuplicatePending):
		return "DuplicatePending"
	case errors.Is(err, ErrConcurrentModification):
		return "ConcurrentModification"
	case errors.Is(err, ErrIncompleteValidation):
		return "IncompleteValidation"
	case errors.Is(err, ErrAlreadyRated):
		return "AlreadyRated"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	default:
		return "Internal"
	}
}
