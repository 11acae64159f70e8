// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Circuit breaker
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bastion_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bastion_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// External calls, one series per guarded dependency
	ExternalCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bastion_external_calls_total",
			Help: "Calls to guarded external services by result",
		},
		[]string{"service", "result"}, // success, failure, rejected, timeout, fallback
	)

	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bastion_external_call_duration_seconds",
			Help:    "Duration of guarded external calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// Detection
	AnalysisScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bastion_analysis_aggregate_score",
			Help:    "Aggregate threat score per analyzed message",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	SignalsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bastion_signals_total",
			Help: "Threat signals emitted by kind",
		},
		[]string{"kind"},
	)

	// Incidents
	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bastion_alerts_raised_total",
			Help: "Incident alerts raised by threat type",
		},
		[]string{"threat_type"},
	)

	AnalystActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bastion_analyst_actions_total",
			Help: "Analyst actions by action and result",
		},
		[]string{"action", "result"}, // success, failed, already_handled
	)

	// Raid
	RaidTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bastion_raid_triggers_total",
			Help: "Raid detections by mitigation result",
		},
		[]string{"result"}, // mitigated, skipped
	)

	RaidMembersRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bastion_raid_members_removed_total",
			Help: "Members removed by raid mitigation",
		},
	)
)

func RecordExternalCall(service, result string, duration time.Duration) {
	ExternalCalls.WithLabelValues(service, result).Inc()
	if duration > 0 {
		ExternalCallDuration.WithLabelValues(service).Observe(duration.Seconds())
	}
}

func RecordBreakerTransition(name, from, to string, value float64) {
	BreakerTransitions.WithLabelValues(name, from, to).Inc()
	BreakerState.WithLabelValues(name).Set(value)
}

func RecordAnalysis(score int, signalKinds []string) {
	AnalysisScore.Observe(float64(score))
	for _, kind := range signalKinds {
		SignalsEmitted.WithLabelValues(kind).Inc()
	}
}

func RecordAlert(threatType string) {
	AlertsRaised.WithLabelValues(threatType).Inc()
}

func RecordAnalystAction(action string, success, alreadyHandled bool) {
	result := "failed"
	switch {
	case alreadyHandled:
		result = "already_handled"
	case success:
		result = "success"
	}
	AnalystActions.WithLabelValues(action, result).Inc()
}

func RecordRaid(skipped bool, removed int) {
	if skipped {
		RaidTriggers.WithLabelValues("skipped").Inc()
		return
	}
	RaidTriggers.WithLabelValues("mitigated").Inc()
	RaidMembersRemoved.Add(float64(removed))
}
