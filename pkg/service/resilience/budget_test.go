package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/bastion/pkg/adapter/counter"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/service/resilience"
)

type brokenStore struct {
	*counter.Memory
}

func (brokenStore) TakeTokens(ctx context.Context, key string, n, capacity, refill int, interval time.Duration) (bool, error) {
	return false, errors.New("store down")
}

func TestSharedBudget(t *testing.T) {
	t.Run("scopes share nothing", func(t *testing.T) {
		budget := resilience.NewSharedBudget(counter.NewMemory(), "assist", resilience.RateLimitConfig{
			Capacity: 2, TokensPerInterval: 1, Interval: time.Hour,
		})
		ctx := t.Context()

		gt.True(t, budget.TryAcquire(ctx, "g1", 1))
		gt.True(t, budget.TryAcquire(ctx, "g1", 1))
		gt.False(t, budget.TryAcquire(ctx, "g1", 1))
		gt.True(t, budget.TryAcquire(ctx, "g2", 1))
	})

	t.Run("two budgets on one store share tokens", func(t *testing.T) {
		store := counter.NewMemory()
		cfg := resilience.RateLimitConfig{Capacity: 1, TokensPerInterval: 1, Interval: time.Hour}
		a := resilience.NewSharedBudget(store, "assist", cfg)
		b := resilience.NewSharedBudget(store, "assist", cfg)

		gt.True(t, a.TryAcquire(t.Context(), "g1", 1))
		gt.False(t, b.TryAcquire(t.Context(), "g1", 1))
	})

	t.Run("fails open when store is down", func(t *testing.T) {
		budget := resilience.NewSharedBudget(brokenStore{counter.NewMemory()}, "assist", resilience.RateLimitConfig{
			Capacity: 1, TokensPerInterval: 1, Interval: time.Hour,
		})
		gt.True(t, budget.TryAcquire(t.Context(), "g1", 1))
		gt.True(t, budget.TryAcquire(t.Context(), "g1", 1))
	})

	t.Run("acquire gives up with context", func(t *testing.T) {
		budget := resilience.NewSharedBudget(counter.NewMemory(), "assist", resilience.RateLimitConfig{
			Capacity: 1, TokensPerInterval: 1, Interval: time.Hour,
		})
		gt.NoError(t, budget.Acquire(t.Context(), "g1", 1))

		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()
		err := budget.Acquire(ctx, "g1", 1)
		gt.True(t, goerr.HasTag(err, errs.TagRateLimit))
	})

	t.Run("acquire rejects over capacity", func(t *testing.T) {
		budget := resilience.NewSharedBudget(counter.NewMemory(), "assist", resilience.RateLimitConfig{
			Capacity: 1, TokensPerInterval: 1, Interval: time.Hour,
		})
		err := budget.Acquire(t.Context(), "g1", 2)
		gt.True(t, goerr.HasTag(err, errs.TagRateLimit))
	})
}
