package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
)

// WithTimeout returns by d even when op ignores its context. The goroutine
// running op may outlive the call.
func WithTimeout(ctx context.Context, d time.Duration, op func(ctx context.Context) error) error {
	if d <= 0 {
		return op(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return goerr.Wrap(ctx.Err(), "operation canceled", goerr.TV(errs.DurationKey, d))
		}
		return goerr.Wrap(ctx.Err(), "operation timed out",
			goerr.T(errs.TagTimeout),
			goerr.TV(errs.DurationKey, d))
	}
}
