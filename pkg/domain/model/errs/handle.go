package errs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
	"github.com/secmon-lab/bastion/pkg/utils/request_id"
)

// reportedTags is ordered by priority; the first one present on an error is
// sent to Sentry as error.tag.
var reportedTags = []string{
	TagCircuitOpen.String(), TagTimeout.String(), TagRateLimit.String(), TagForbidden.String(),
	TagExternal.String(), TagDatabase.String(), TagDiscordError.String(), TagSlackError.String(),
	TagLLMError.String(), TagInternal.String(),
}

// ReportedTag returns the highest priority tag of err that is reported to
// Sentry, or an empty string.
func ReportedTag(err error) string {
	tags := goerr.Tags(err)
	for _, tag := range reportedTags {
		if slices.Contains(tags, tag) {
			return tag
		}
	}
	return ""
}

// Handle logs err and forwards it to Sentry. Malformed inbound events are
// logged at warn level only.
func Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "[CRITICAL] slog crashed during error handling: original_error=%s, slog_panic=%v\n",
				err.Error(), r)
		}
	}()

	logger := logging.From(ctx)
	if goerr.HasTag(err, TagInvalidRequest) {
		logger.Warn("Dropped invalid request: "+err.Error(), slog.Any("error", err))
		return
	}

	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		if reqID := request_id.FromContext(ctx); reqID != "" {
			scope.SetTag("request_id", reqID)
		}
		if tag := ReportedTag(err); tag != "" {
			scope.SetTag("error.tag", tag)
		}
		for k, v := range goerr.Values(err) {
			scope.SetExtra(k, v)
		}
	})
	evID := hub.CaptureException(err)

	logger.Error("Error: "+err.Error(),
		slog.Any("error", err),
		slog.Any("sentry.id", evID),
	)
}
