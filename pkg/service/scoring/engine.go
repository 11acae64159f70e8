// Package scoring combines content rules with URL and file reputation into a
// single threat analysis.
package scoring

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/event"
	"github.com/secmon-lab/bastion/pkg/domain/model/threat"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/metrics"
	"github.com/secmon-lab/bastion/pkg/service/ioc"
	"github.com/secmon-lab/bastion/pkg/service/resilience"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const defaultMaxDownloadSize = 32 * 1024 * 1024

// Scores for URL reputation threat categories.
var urlCategoryScores = map[string]int{
	"MALWARE":                         95,
	"SOCIAL_ENGINEERING":              90,
	"UNWANTED_SOFTWARE":               70,
	"POTENTIALLY_HARMFUL_APPLICATION": 60,
}

const unknownCategoryScore = 50

type Engine struct {
	urlReputation  interfaces.URLReputation
	fileReputation interfaces.FileReputation
	downloader     interfaces.Downloader
	urlPolicy      *resilience.Policy
	filePolicy     *resilience.Policy
	patterns       Patterns
	maxDownload    int64
}

type Option func(*Engine)

// WithURLReputation enables URL lookups guarded by policy.
func WithURLReputation(client interfaces.URLReputation, policy *resilience.Policy) Option {
	return func(e *Engine) {
		e.urlReputation = client
		e.urlPolicy = policy
	}
}

// WithFileReputation enables attachment hash lookups guarded by policy.
func WithFileReputation(client interfaces.FileReputation, policy *resilience.Policy) Option {
	return func(e *Engine) {
		e.fileReputation = client
		e.filePolicy = policy
	}
}

// WithDownloader hashes attachments the platform did not hash.
func WithDownloader(d interfaces.Downloader, maxBytes int64) Option {
	return func(e *Engine) {
		e.downloader = d
		if maxBytes > 0 {
			e.maxDownload = maxBytes
		}
	}
}

func WithPatterns(p Patterns) Option {
	return func(e *Engine) {
		e.patterns = p
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		patterns:    DefaultPatterns(),
		maxDownload: defaultMaxDownloadSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze scores text and attachments. Lookup failures drop the affected
// signal; Analyze itself never fails.
func (x *Engine) Analyze(ctx context.Context, text string, attachments []event.Attachment) *threat.Analysis {
	iocs := ioc.Extract(text)

	var urlSignals, fileSignals []threat.Signal
	var eg errgroup.Group

	if x.urlReputation != nil && len(iocs.URLs) > 0 {
		eg.Go(func() error {
			urlSignals = x.checkURLs(ctx, iocs.URLs)
			return nil
		})
	}
	if x.fileReputation != nil && len(attachments) > 0 {
		eg.Go(func() error {
			fileSignals = x.checkAttachments(ctx, attachments)
			return nil
		})
	}
	_ = eg.Wait()

	signals := append(urlSignals, fileSignals...)
	if content := analyzeContent(text, iocs, x.patterns); content != nil {
		signals = append(signals, *content)
	}

	analysis := threat.NewAnalysis(iocs, signals)

	kinds := make([]string, len(analysis.Signals))
	for i, s := range analysis.Signals {
		kinds[i] = s.Kind.String()
	}
	metrics.RecordAnalysis(analysis.AggregateScore, kinds)
	logging.From(ctx).Debug("message analyzed", slog.Any("analysis", analysis))

	return analysis
}

func (x *Engine) checkURLs(ctx context.Context, urls []string) []threat.Signal {
	matches := resilience.Graceful(ctx, "url_reputation", func(ctx context.Context) ([]threat.URLMatch, error) {
		return resilience.Call(ctx, x.urlPolicy, func(ctx context.Context) ([]threat.URLMatch, error) {
			return x.urlReputation.CheckURLs(ctx, urls)
		})
	}, nil)

	signals := make([]threat.Signal, 0, len(matches))
	for _, m := range matches {
		signals = append(signals, threat.Signal{
			Kind:          types.SignalURLReputation,
			Score:         URLCategoryScore(m.ThreatType),
			Indicator:     m.URL,
			IndicatorType: types.IndicatorURL,
			Source:        "url_reputation",
			Description:   fmt.Sprintf("URL flagged as %s", m.ThreatType),
			Metadata: map[string]any{
				"threat_type":   m.ThreatType,
				"platform_type": m.PlatformType,
			},
		})
	}
	return signals
}

// URLCategoryScore maps a reputation category to a signal score.
func URLCategoryScore(category string) int {
	if score, ok := urlCategoryScores[strings.ToUpper(category)]; ok {
		return score
	}
	return unknownCategoryScore
}

func (x *Engine) checkAttachments(ctx context.Context, attachments []event.Attachment) []threat.Signal {
	results := make([]*threat.Signal, len(attachments))

	var eg errgroup.Group
	for i, att := range attachments {
		eg.Go(func() error {
			results[i] = x.checkAttachment(ctx, att)
			return nil
		})
	}
	_ = eg.Wait()

	var signals []threat.Signal
	for _, s := range results {
		if s != nil {
			signals = append(signals, *s)
		}
	}
	return signals
}

func (x *Engine) checkAttachment(ctx context.Context, att event.Attachment) *threat.Signal {
	logger := logging.From(ctx).With(slog.String("filename", att.Filename))

	digest := strings.ToLower(att.SHA256)
	if digest == "" {
		if x.downloader == nil {
			return nil
		}
		if att.Size > x.maxDownload {
			logger.Debug("attachment too large to hash",
				slog.String("size", humanize.IBytes(uint64(att.Size))),
				slog.String("limit", humanize.IBytes(uint64(x.maxDownload))))
			return nil
		}

		data, err := x.downloader.Download(ctx, att.URL, x.maxDownload)
		if err != nil {
			logger.Warn("failed to download attachment", logging.ErrAttr(err))
			return nil
		}
		sum := sha256.Sum256(data)
		digest = hex.EncodeToString(sum[:])
	}

	report := resilience.Graceful(ctx, "file_reputation", func(ctx context.Context) (*threat.FileReport, error) {
		return resilience.Call(ctx, x.filePolicy, func(ctx context.Context) (*threat.FileReport, error) {
			return x.fileReputation.LookupHash(ctx, digest)
		})
	}, nil)
	if report == nil {
		return nil
	}

	rate := report.DetectionRate()
	if rate == 0 {
		return nil
	}

	return &threat.Signal{
		Kind:          types.SignalFileReputation,
		Score:         rate,
		Indicator:     digest,
		IndicatorType: types.IndicatorHash,
		Source:        "file_reputation",
		Description: fmt.Sprintf("%s flagged by %d of %d engines",
			att.Filename, report.Malicious+report.Suspicious, report.Total()),
		Metadata: map[string]any{
			"filename":   att.Filename,
			"malicious":  report.Malicious,
			"suspicious": report.Suspicious,
			"total":      report.Total(),
		},
	}
}
