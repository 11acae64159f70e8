// Package intel enriches analyses with threat intelligence and reports
// sightings back. Every call is guarded by a resilience policy and fails
// open: a miss and a failure look the same to the caller.
package intel

import (
	"context"
	"log/slog"

	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/intel"
	"github.com/secmon-lab/bastion/pkg/domain/model/ioc"
	"github.com/secmon-lab/bastion/pkg/domain/model/threat"
	"github.com/secmon-lab/bastion/pkg/service/resilience"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxLookups  = 5
	lookupConcurrency  = 3
	draftRecordMinimum = threat.BanThreshold
)

type Service struct {
	lookup       interfaces.IntelLookup
	lookupPolicy *resilience.Policy
	reporter     interfaces.IntelReporter
	reportPolicy *resilience.Policy
	maxLookups   int
}

type Option func(*Service)

func WithLookup(client interfaces.IntelLookup, policy *resilience.Policy) Option {
	return func(s *Service) {
		s.lookup = client
		s.lookupPolicy = policy
	}
}

func WithReporter(client interfaces.IntelReporter, policy *resilience.Policy) Option {
	return func(s *Service) {
		s.reporter = client
		s.reportPolicy = policy
	}
}

// WithMaxLookups bounds how many indicators of one analysis are looked up.
func WithMaxLookups(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLookups = n
		}
	}
}

func New(opts ...Option) *Service {
	s := &Service{maxLookups: defaultMaxLookups}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether any intelligence source is configured.
func (x *Service) Enabled() bool {
	return x.lookup != nil || x.reporter != nil
}

// Lookup returns nil when the indicator is unknown or the source failed.
func (x *Service) Lookup(ctx context.Context, indicator ioc.Indicator) *intel.Record {
	if x.lookup == nil {
		return nil
	}
	return resilience.Graceful(ctx, "intel_lookup", func(ctx context.Context) (*intel.Record, error) {
		return resilience.Call(ctx, x.lookupPolicy, func(ctx context.Context) (*intel.Record, error) {
			return x.lookup.Lookup(ctx, indicator)
		})
	}, nil)
}

// ReportSighting is best effort; false means the sighting was not recorded.
func (x *Service) ReportSighting(ctx context.Context, value, contextID string) bool {
	if x.reporter == nil {
		return false
	}
	return resilience.Graceful(ctx, "intel_sighting", func(ctx context.Context) (bool, error) {
		err := x.reportPolicy.Do(ctx, func(ctx context.Context) error {
			return x.reporter.ReportSighting(ctx, value, contextID)
		})
		return err == nil, err
	}, false)
}

// CreateRecord creates a draft record for analyst review. Records are never
// published from here.
func (x *Service) CreateRecord(ctx context.Context, signal threat.Signal, contextID string) *intel.Record {
	if x.reporter == nil {
		return nil
	}
	record := resilience.Graceful(ctx, "intel_record", func(ctx context.Context) (*intel.Record, error) {
		return resilience.Call(ctx, x.reportPolicy, func(ctx context.Context) (*intel.Record, error) {
			return x.reporter.CreateRecord(ctx, signal, contextID)
		})
	}, nil)
	if record != nil {
		record.Draft = true
	}
	return record
}

// Enrich looks up the analysis' indicators in priority order, reports a
// sighting for every known one, and files a draft record when a
// high-confidence threat matched nothing known.
func (x *Service) Enrich(ctx context.Context, analysis *threat.Analysis, contextID string) *intel.Enrichment {
	result := &intel.Enrichment{}
	if analysis == nil || !x.Enabled() {
		return result
	}

	indicators := analysis.IOCs.Indicators()
	if len(indicators) > x.maxLookups {
		indicators = indicators[:x.maxLookups]
	}
	result.IndicatorsSeen = len(indicators)

	records := make([]*intel.Record, len(indicators))
	var eg errgroup.Group
	eg.SetLimit(lookupConcurrency)
	for i, indicator := range indicators {
		eg.Go(func() error {
			records[i] = x.Lookup(ctx, indicator)
			return nil
		})
	}
	_ = eg.Wait()

	for _, r := range records {
		if r == nil {
			continue
		}
		result.Records = append(result.Records, *r)
		if x.ReportSighting(ctx, r.Indicator, contextID) {
			result.SightingsSent++
		}
	}

	if len(result.Records) == 0 && analysis.AggregateScore >= draftRecordMinimum {
		if signal, ok := draftCandidate(analysis); ok {
			result.DraftRecord = x.CreateRecord(ctx, signal, contextID)
		}
	}

	logging.From(ctx).Debug("analysis enriched",
		slog.String("context_id", contextID),
		slog.Int("indicators", result.IndicatorsSeen),
		slog.Int("known", len(result.Records)),
		slog.Int("sightings", result.SightingsSent),
		slog.Bool("draft", result.DraftRecord != nil),
	)
	return result
}

// draftCandidate picks the highest scoring signal that names an indicator.
func draftCandidate(analysis *threat.Analysis) (threat.Signal, bool) {
	var best threat.Signal
	found := false
	for _, s := range analysis.Signals {
		if s.Indicator == "" {
			continue
		}
		if !found || s.Score > best.Score {
			best = s
			found = true
		}
	}
	return best, found
}
