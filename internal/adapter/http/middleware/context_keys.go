package middleware

import "context"

// ContextKey is the type of the request context keys set by this package.
type ContextKey string

const (
	// UserIDCtxKey holds the authenticated user ID.
	UserIDCtxKey = ContextKey("user_id")
	// RequestIDCtxKey holds the request ID echoed in X-Request-ID.
	RequestIDCtxKey = ContextKey("request_id")
)

// UserIDFromContext returns the authenticated user ID, or "" outside Auth.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(UserIDCtxKey).(string)
	return id
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDCtxKey).(string)
	return id
}
