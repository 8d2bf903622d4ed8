package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const keyRequestID contextKey = "request_id"

// WithRequestID adds the inbound request ID to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// RequestID extracts the request ID from context.
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRequestID).(string)
	return v, ok && v != ""
}
