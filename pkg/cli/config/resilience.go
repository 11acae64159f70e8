package config

import (
	"log/slog"
	"time"

	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/service/resilience"
	"github.com/urfave/cli/v3"
)

// Resilience holds the guards applied to every reputation and intelligence
// client. Each client gets its own breaker and limiter built from them.
type Resilience struct {
	maxAttempts      int
	failureThreshold int
	openTimeout      time.Duration
	callTimeout      time.Duration
	ratePerMinute    int

	assistPerMinute int
}

func (x *Resilience) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "retry-max-attempts",
			Usage:       "Attempts per external call, including the first",
			Category:    "Resilience",
			Sources:     cli.EnvVars("BASTION_RETRY_MAX_ATTEMPTS"),
			Value:       3,
			Destination: &x.maxAttempts,
		},
		&cli.IntFlag{
			Name:        "breaker-failure-threshold",
			Usage:       "Consecutive failures that open a circuit",
			Category:    "Resilience",
			Sources:     cli.EnvVars("BASTION_BREAKER_FAILURE_THRESHOLD"),
			Value:       5,
			Destination: &x.failureThreshold,
		},
		&cli.DurationFlag{
			Name:        "breaker-open-timeout",
			Usage:       "How long an open circuit rejects calls before a trial",
			Category:    "Resilience",
			Sources:     cli.EnvVars("BASTION_BREAKER_OPEN_TIMEOUT"),
			Value:       30 * time.Second,
			Destination: &x.openTimeout,
		},
		&cli.DurationFlag{
			Name:        "call-timeout",
			Usage:       "Deadline of a single external call attempt",
			Category:    "Resilience",
			Sources:     cli.EnvVars("BASTION_CALL_TIMEOUT"),
			Value:       5 * time.Second,
			Destination: &x.callTimeout,
		},
		&cli.IntFlag{
			Name:        "rate-per-minute",
			Usage:       "Calls per minute allowed to each external service (0: unlimited)",
			Category:    "Resilience",
			Sources:     cli.EnvVars("BASTION_RATE_PER_MINUTE"),
			Value:       60,
			Destination: &x.ratePerMinute,
		},
		&cli.IntFlag{
			Name:        "assist-per-minute",
			Usage:       "Assistant questions per minute per community",
			Category:    "Resilience",
			Sources:     cli.EnvVars("BASTION_ASSIST_PER_MINUTE"),
			Value:       5,
			Destination: &x.assistPerMinute,
		},
	}
}

func (x Resilience) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("max_attempts", x.maxAttempts),
		slog.Int("failure_threshold", x.failureThreshold),
		slog.Duration("open_timeout", x.openTimeout),
		slog.Duration("call_timeout", x.callTimeout),
		slog.Int("rate_per_minute", x.ratePerMinute),
		slog.Int("assist_per_minute", x.assistPerMinute),
	)
}

// Policy builds a fresh policy named after the guarded service.
func (x *Resilience) Policy(name string) *resilience.Policy {
	retry := resilience.DefaultRetryConfig()
	if x.maxAttempts > 0 {
		retry.MaxAttempts = x.maxAttempts
	}

	breaker := resilience.DefaultBreakerConfig()
	if x.failureThreshold > 0 {
		breaker.FailureThreshold = x.failureThreshold
	}
	if x.openTimeout > 0 {
		breaker.Timeout = x.openTimeout
	}

	cfg := resilience.PolicyConfig{
		Retry:   retry,
		Breaker: breaker,
		Timeout: x.callTimeout,
	}
	if x.ratePerMinute > 0 {
		cfg.RateLimit = &resilience.RateLimitConfig{
			Capacity:          x.ratePerMinute,
			TokensPerInterval: x.ratePerMinute,
			Interval:          time.Minute,
		}
	}
	return resilience.NewPolicy(name, cfg)
}

// AssistBudget is the per-community question budget shared through store.
func (x *Resilience) AssistBudget(store interfaces.CounterStore) *resilience.SharedBudget {
	perMinute := max(x.assistPerMinute, 1)
	return resilience.NewSharedBudget(store, "assist", resilience.RateLimitConfig{
		Capacity:          perMinute,
		TokensPerInterval: perMinute,
		Interval:          time.Minute,
	})
}
