package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/metrics"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
	"github.com/sony/gobreaker/v2"
)

type State string

const (
	StateClosed   State = "closed"
	StateHalfOpen State = "half-open"
	StateOpen     State = "open"
)

type BreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int
	// Timeout is how long the circuit stays open before a trial call.
	Timeout time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// Breaker is a process-local circuit breaker for one dependency.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	failures := uint32(max(cfg.FailureThreshold, 1))
	successes := uint32(max(cfg.SuccessThreshold, 1))

	metrics.BreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: successes,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A definite "not found" answer means the dependency is healthy.
		IsSuccessful: func(err error) bool {
			return err == nil || goerr.HasTag(err, errs.TagNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Default().Info("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", string(convertState(from))),
				slog.String("to", string(convertState(to))),
			)
			metrics.RecordBreakerTransition(name, string(convertState(from)), string(convertState(to)), stateToFloat(to))
		},
	})

	return &Breaker{name: name, cb: cb}
}

func (x *Breaker) Name() string { return x.name }

func (x *Breaker) State() State {
	return convertState(x.cb.State())
}

// Execute runs op unless the circuit is open. Rejections are tagged
// errs.TagCircuitOpen and op is not invoked.
func (x *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := x.cb.Execute(func() (any, error) {
		return nil, op(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return goerr.Wrap(err, "circuit breaker rejected call",
			goerr.T(errs.TagCircuitOpen),
			goerr.TV(errs.BreakerKey, x.name))
	}
	return err
}

func convertState(state gobreaker.State) State {
	switch state {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
