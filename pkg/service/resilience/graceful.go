package resilience

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/metrics"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
)

// Graceful returns fallback instead of an error when op fails. Used wherever
// missing enrichment must not stop the pipeline.
func Graceful[T any](ctx context.Context, name string, op func(ctx context.Context) (T, error), fallback T) T {
	v, err := op(ctx)
	if err == nil {
		return v
	}

	logger := logging.From(ctx).With(slog.String("operation", name))
	if goerr.HasTag(err, errs.TagNotFound) {
		logger.Debug("no result, using fallback")
	} else {
		logger.Warn("operation failed, using fallback", logging.ErrAttr(err))
		metrics.RecordExternalCall(name, "fallback", 0)
	}
	return fallback
}
