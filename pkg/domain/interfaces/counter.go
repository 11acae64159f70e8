package interfaces

import (
	"context"
	"time"
)

// CounterStore is the shared counter store used across processes. Every
// method is a single atomic operation of the backing store.
type CounterStore interface {
	// RecordInWindow adds member at time at to the sorted window key, drops
	// entries older than window and returns how many remain.
	RecordInWindow(ctx context.Context, key, member string, at time.Time, window time.Duration) (int64, error)
	// RangeWindow returns members recorded at or after since.
	RangeWindow(ctx context.Context, key string, since time.Time) ([]string, error)
	// TakeTokens debits n tokens from the bucket key holding at most capacity
	// tokens and refilling refill tokens per interval.
	TakeTokens(ctx context.Context, key string, n, capacity, refill int, interval time.Duration) (bool, error)
	// SetNX sets key only when absent. It returns false when key was held.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}
