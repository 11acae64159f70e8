package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/metrics"
)

// Policy composes the guards around one external dependency. Any field may
// be nil or zero to skip that guard. Per attempt the order from inside out
// is timeout, breaker, limiter; retry wraps all of them.
type Policy struct {
	Name    string
	Retry   *RetryConfig
	Breaker *Breaker
	Limiter *RateLimiter
	Timeout time.Duration
}

type PolicyConfig struct {
	Retry     RetryConfig
	Breaker   BreakerConfig
	RateLimit *RateLimitConfig
	Timeout   time.Duration
}

// NewPolicy builds a policy with its own breaker and, when configured, its
// own rate limiter.
func NewPolicy(name string, cfg PolicyConfig) *Policy {
	retry := cfg.Retry
	p := &Policy{
		Name:    name,
		Retry:   &retry,
		Breaker: NewBreaker(name, cfg.Breaker),
		Timeout: cfg.Timeout,
	}
	if cfg.RateLimit != nil {
		p.Limiter = NewRateLimiter(*cfg.RateLimit)
	}
	return p
}

func (x *Policy) name() string {
	if x == nil || x.Name == "" {
		return "unnamed"
	}
	return x.Name
}

func (x *Policy) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	call := func(ctx context.Context) error {
		if x.Timeout > 0 {
			return WithTimeout(ctx, x.Timeout, op)
		}
		return op(ctx)
	}

	if x.Limiter != nil {
		if err := x.Limiter.Acquire(ctx, 1); err != nil {
			return err
		}
	}

	start := time.Now()
	var err error
	if x.Breaker != nil {
		err = x.Breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	metrics.RecordExternalCall(x.name(), callResult(err), time.Since(start))
	return err
}

// Do runs op under the policy. A nil policy runs op directly.
func (x *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if x == nil {
		return op(ctx)
	}

	if x.Retry == nil {
		return x.attempt(ctx, op)
	}
	return Retry(ctx, *x.Retry, func(ctx context.Context) error {
		return x.attempt(ctx, op)
	})
}

// Call is Do for operations returning a value.
func Call[T any](ctx context.Context, policy *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := policy.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func callResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case goerr.HasTag(err, errs.TagNotFound):
		return "not_found"
	case goerr.HasTag(err, errs.TagCircuitOpen):
		return "rejected"
	case goerr.HasTag(err, errs.TagTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "failure"
	}
}
