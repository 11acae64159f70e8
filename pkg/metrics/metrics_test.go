package metrics_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/secmon-lab/bastion/pkg/metrics"
)

func TestRecordExternalCall(t *testing.T) {
	before := testutil.ToFloat64(metrics.ExternalCalls.WithLabelValues("test-svc", "success"))
	metrics.RecordExternalCall("test-svc", "success", 10*time.Millisecond)
	after := testutil.ToFloat64(metrics.ExternalCalls.WithLabelValues("test-svc", "success"))
	gt.Equal(t, after-before, 1.0)
}

func TestRecordAnalystAction(t *testing.T) {
	before := testutil.ToFloat64(metrics.AnalystActions.WithLabelValues("ban", "already_handled"))
	metrics.RecordAnalystAction("ban", true, true)
	after := testutil.ToFloat64(metrics.AnalystActions.WithLabelValues("ban", "already_handled"))
	gt.Equal(t, after-before, 1.0)
}

func TestRecordRaid(t *testing.T) {
	before := testutil.ToFloat64(metrics.RaidMembersRemoved)
	metrics.RecordRaid(false, 3)
	metrics.RecordRaid(true, 5)
	gt.Equal(t, testutil.ToFloat64(metrics.RaidMembersRemoved)-before, 3.0)
}

func TestMetricsLint(t *testing.T) {
	metrics.RecordAnalysis(42, []string{"content_pattern"})
	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer, "bastion_analysis_aggregate_score")
	gt.NoError(t, err)
	gt.A(t, problems).Length(0)
}
