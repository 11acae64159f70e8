// Package resilience guards calls to unreliable external services with
// retry, circuit breaking, rate limiting, timeouts and graceful fallback.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
)

type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Retryable lists sentinel errors (matched with errors.Is) and
	// RetryableTags lists goerr tag names that allow another attempt. With
	// both empty every error except a circuit-open rejection or a not-found
	// answer is retried.
	Retryable     []error
	RetryableTags []string
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
	}
}

func (x RetryConfig) isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	if len(x.Retryable) == 0 && len(x.RetryableTags) == 0 {
		return !isCircuitOpen(err) && !goerr.HasTag(err, errs.TagNotFound)
	}

	for _, target := range x.Retryable {
		if errors.Is(err, target) {
			return true
		}
	}
	if len(x.RetryableTags) > 0 {
		for _, tag := range goerr.Tags(err) {
			if slices.Contains(x.RetryableTags, tag) {
				return true
			}
		}
	}
	return false
}

func (x RetryConfig) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = x.InitialDelay
	b.MaxInterval = x.MaxDelay
	b.Multiplier = x.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}

	attempts := x.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Retry runs op until it succeeds, fails with a non-retryable error or
// MaxAttempts is reached. The last error is returned. When ctx ends between
// attempts the last error is joined with the context error.
func Retry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	attempt := 0
	var lastErr error
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !cfg.isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logging.From(ctx).Debug("retrying operation",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			logging.ErrAttr(err),
		)
	}

	err := backoff.RetryNotify(operation, cfg.backOff(ctx), notify)
	if err != nil && lastErr != nil && ctx.Err() != nil &&
		errors.Is(err, ctx.Err()) && !errors.Is(lastErr, ctx.Err()) {
		return errors.Join(lastErr, err)
	}
	return err
}

// RetryValue is Retry for operations returning a value.
func RetryValue[T any](ctx context.Context, cfg RetryConfig, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Retry(ctx, cfg, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func isCircuitOpen(err error) bool {
	return goerr.HasTag(err, errs.TagCircuitOpen)
}
