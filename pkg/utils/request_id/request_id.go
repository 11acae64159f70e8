package request_id

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

func With(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// FromContext returns the request ID, or "" when none was set.
func FromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(contextKey{}).(string); ok {
		return requestID
	}
	return ""
}

// Generate attaches a fresh request ID to ctx. Inbound gateway events get one
// too so that a message's analysis can be traced across log lines.
func Generate(ctx context.Context) (context.Context, string) {
	requestID := uuid.New().String()
	return With(ctx, requestID), requestID
}
