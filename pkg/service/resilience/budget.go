package resilience

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
)

// SharedBudget is a token bucket kept in the shared counter store so that all
// processes draw from one budget. Store failures grant the tokens.
type SharedBudget struct {
	store  interfaces.CounterStore
	prefix string
	cfg    RateLimitConfig
}

func NewSharedBudget(store interfaces.CounterStore, prefix string, cfg RateLimitConfig) *SharedBudget {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.TokensPerInterval < 1 {
		cfg.TokensPerInterval = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &SharedBudget{store: store, prefix: prefix, cfg: cfg}
}

func (x *SharedBudget) key(scope string) string {
	return "budget:" + x.prefix + ":" + scope
}

// TryAcquire debits n tokens from scope's bucket if available now.
func (x *SharedBudget) TryAcquire(ctx context.Context, scope string, n int) bool {
	if n > x.cfg.Capacity {
		return false
	}

	ok, err := x.store.TakeTokens(ctx, x.key(scope), n, x.cfg.Capacity, x.cfg.TokensPerInterval, x.cfg.Interval)
	if err != nil {
		logging.From(ctx).Warn("shared rate budget unavailable, allowing call",
			slog.String("budget", x.prefix),
			slog.String("scope", scope),
			logging.ErrAttr(err),
		)
		return true
	}
	return ok
}

// Acquire polls until n tokens are debited or ctx is done.
func (x *SharedBudget) Acquire(ctx context.Context, scope string, n int) error {
	if n > x.cfg.Capacity {
		return goerr.New("requested tokens exceed capacity",
			goerr.T(errs.TagRateLimit),
			goerr.V("requested", n),
			goerr.V("capacity", x.cfg.Capacity))
	}

	wait := x.cfg.Interval / time.Duration(x.cfg.TokensPerInterval)
	for {
		if x.TryAcquire(ctx, scope, n) {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return goerr.Wrap(ctx.Err(), "gave up waiting for shared budget",
				goerr.T(errs.TagRateLimit),
				goerr.V("scope", scope))
		case <-timer.C:
		}
	}
}
