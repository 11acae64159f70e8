package config

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const sentryFlushTimeout = 2 * time.Second

// Sentry receives the errors passed to errs.Handle. Without a DSN errors are
// only logged.
type Sentry struct {
	dsn        string
	env        string
	release    string
	sampleRate float64
}

func (x *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN",
			Category:    "Sentry",
			Sources:     cli.EnvVars("BASTION_SENTRY_DSN"),
			Destination: &x.dsn,
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment",
			Category:    "Sentry",
			Sources:     cli.EnvVars("BASTION_SENTRY_ENV"),
			Destination: &x.env,
		},
		&cli.StringFlag{
			Name:        "sentry-release",
			Usage:       "Release name reported with each event",
			Category:    "Sentry",
			Sources:     cli.EnvVars("BASTION_SENTRY_RELEASE"),
			Destination: &x.release,
		},
		&cli.FloatFlag{
			Name:        "sentry-sample-rate",
			Usage:       "Share of error events sent to Sentry (0.0-1.0)",
			Category:    "Sentry",
			Value:       1.0,
			Sources:     cli.EnvVars("BASTION_SENTRY_SAMPLE_RATE"),
			Destination: &x.sampleRate,
		},
	}
}

func (x Sentry) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", x.dsn != ""),
		slog.String("env", x.env),
		slog.String("release", x.release),
		slog.Float64("sample_rate", x.sampleRate),
	)
}

// Configure initializes the Sentry client. The returned function flushes
// buffered events and must be called before exit.
func (x *Sentry) Configure() (func(), error) {
	noop := func() {}
	if x.dsn == "" {
		logging.Default().Warn("Sentry is not configured, errors are only logged")
		return noop, nil
	}
	if x.sampleRate < 0 || x.sampleRate > 1 {
		return noop, goerr.New("sentry sample rate must be between 0 and 1",
			goerr.T(errs.TagValidation), goerr.V("sample_rate", x.sampleRate))
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         x.dsn,
		Environment: x.env,
		Release:     x.release,
		SampleRate:  x.sampleRate,
	}); err != nil {
		return noop, goerr.Wrap(err, "failed to initialize sentry", goerr.T(errs.TagValidation))
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("service", "bastion")
	})

	return func() { sentry.Flush(sentryFlushTimeout) }, nil
}
