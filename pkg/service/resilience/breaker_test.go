package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/service/resilience"
)

var errDependency = errors.New("dependency failed")

func failing(ctx context.Context) error    { return errDependency }
func succeeding(ctx context.Context) error { return nil }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := resilience.NewBreaker(t.Name(), resilience.BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Hour,
	})
	ctx := t.Context()

	for range 2 {
		gt.True(t, errors.Is(b.Execute(ctx, failing), errDependency))
		gt.Equal(t, b.State(), resilience.StateClosed)
	}
	gt.True(t, errors.Is(b.Execute(ctx, failing), errDependency))
	gt.Equal(t, b.State(), resilience.StateOpen)

	invoked := false
	err := b.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})
	gt.False(t, invoked)
	gt.True(t, goerr.HasTag(err, errs.TagCircuitOpen))
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := resilience.NewBreaker(t.Name(), resilience.BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
	})
	ctx := t.Context()

	_ = b.Execute(ctx, failing)
	_ = b.Execute(ctx, failing)
	gt.NoError(t, b.Execute(ctx, succeeding))
	_ = b.Execute(ctx, failing)
	_ = b.Execute(ctx, failing)
	gt.Equal(t, b.State(), resilience.StateClosed)
}

func TestBreakerHalfOpen(t *testing.T) {
	newOpenBreaker := func(t *testing.T) *resilience.Breaker {
		b := resilience.NewBreaker(t.Name(), resilience.BreakerConfig{
			FailureThreshold: 1,
			SuccessThreshold: 2,
			Timeout:          30 * time.Millisecond,
		})
		_ = b.Execute(t.Context(), failing)
		gt.Equal(t, b.State(), resilience.StateOpen)
		return b
	}

	t.Run("closes after success threshold", func(t *testing.T) {
		b := newOpenBreaker(t)
		time.Sleep(50 * time.Millisecond)
		gt.Equal(t, b.State(), resilience.StateHalfOpen)

		gt.NoError(t, b.Execute(t.Context(), succeeding))
		gt.Equal(t, b.State(), resilience.StateHalfOpen)
		gt.NoError(t, b.Execute(t.Context(), succeeding))
		gt.Equal(t, b.State(), resilience.StateClosed)
	})

	t.Run("any failure reopens", func(t *testing.T) {
		b := newOpenBreaker(t)
		time.Sleep(50 * time.Millisecond)

		gt.NoError(t, b.Execute(t.Context(), succeeding))
		gt.Error(t, b.Execute(t.Context(), failing))
		gt.Equal(t, b.State(), resilience.StateOpen)
	})
}

func TestBreakerTreatsNotFoundAsHealthy(t *testing.T) {
	b := resilience.NewBreaker(t.Name(), resilience.BreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
	})
	err := b.Execute(t.Context(), func(ctx context.Context) error {
		return goerr.New("unknown", goerr.T(errs.TagNotFound))
	})
	gt.True(t, goerr.HasTag(err, errs.TagNotFound))
	gt.Equal(t, b.State(), resilience.StateClosed)
}
