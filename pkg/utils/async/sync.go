package async

import "context"

type ctxSyncKey struct{}

// WithSync makes Dispatch run handlers inline. Tests use it to observe
// handler effects without waiting.
func WithSync(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxSyncKey{}, true)
}

func IsSync(ctx context.Context) bool {
	v, ok := ctx.Value(ctxSyncKey{}).(bool)
	return ok && v
}
