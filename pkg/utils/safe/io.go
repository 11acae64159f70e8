package safe

import (
	"context"
	"io"

	"github.com/secmon-lab/bastion/pkg/utils/logging"
)

// Close closes closer and logs the failure instead of returning it.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Warn("Failed to close", logging.ErrAttr(err))
	}
}

// Drain discards the rest of r so the underlying connection can be reused.
func Drain(ctx context.Context, r io.Reader) {
	if r == nil {
		return
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		logging.From(ctx).Debug("Failed to drain reader", logging.ErrAttr(err))
	}
}
