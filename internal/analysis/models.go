package analysis

import (
	"context"

	"github.com/google/uuid"
)

// Analysis is model output that passed the analysis contract. Numbers are
// json.Number.
type Analysis map[string]interface{}

type requestIDKey struct{}

// WithRequestID attaches a request id used in logs and spans.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id attached by WithRequestID, or a new UUID.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
