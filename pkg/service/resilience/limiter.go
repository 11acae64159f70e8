package resilience

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"golang.org/x/time/rate"
)

type RateLimitConfig struct {
	Capacity          int
	TokensPerInterval int
	Interval          time.Duration
}

// RateLimiter is a process-local token bucket. Tokens refill lazily on access.
type RateLimiter struct {
	cfg     RateLimitConfig
	limiter *rate.Limiter
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.TokensPerInterval < 1 {
		cfg.TokensPerInterval = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}

	every := cfg.Interval / time.Duration(cfg.TokensPerInterval)
	return &RateLimiter{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(every), cfg.Capacity),
	}
}

// Acquire waits until n tokens are available and debits them. The wait for
// one token never exceeds Interval/TokensPerInterval once the bucket is
// drained.
func (x *RateLimiter) Acquire(ctx context.Context, n int) error {
	if n > x.cfg.Capacity {
		return goerr.New("requested tokens exceed capacity",
			goerr.T(errs.TagRateLimit),
			goerr.V("requested", n),
			goerr.V("capacity", x.cfg.Capacity))
	}
	if err := x.limiter.WaitN(ctx, n); err != nil {
		return goerr.Wrap(err, "failed to acquire rate limit tokens", goerr.T(errs.TagRateLimit))
	}
	return nil
}

// TryAcquire debits n tokens if they are available now.
func (x *RateLimiter) TryAcquire(n int) bool {
	if n > x.cfg.Capacity {
		return false
	}
	return x.limiter.AllowN(time.Now(), n)
}

// Tokens reports the tokens currently available.
func (x *RateLimiter) Tokens() float64 {
	return x.limiter.Tokens()
}
