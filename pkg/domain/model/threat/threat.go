package threat

import (
	"log/slog"

	"github.com/secmon-lab/bastion/pkg/domain/model/ioc"
	"github.com/secmon-lab/bastion/pkg/domain/types"
)

// Score thresholds on the aggregate score.
const (
	AlertThreshold = 50
	BlockThreshold = 80
	BanThreshold   = 90

	MaxScore = 100
)

// Signal is one scored detection from a single technique. It is not modified
// after creation.
type Signal struct {
	Kind          types.SignalKind    `json:"kind"`
	Score         int                 `json:"score"`
	Indicator     string              `json:"indicator,omitempty"`
	IndicatorType types.IndicatorType `json:"indicator_type,omitempty"`
	Source        string              `json:"source"`
	Description   string              `json:"description"`
	Metadata      map[string]any      `json:"metadata,omitempty"`
}

func (x Signal) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", x.Kind.String()),
		slog.Int("score", x.Score),
		slog.String("source", x.Source),
		slog.String("indicator", x.Indicator),
	)
}

type Analysis struct {
	AggregateScore  int                   `json:"aggregate_score"`
	Signals         []Signal              `json:"signals"`
	IOCs            ioc.Set               `json:"iocs"`
	ShouldBlock     bool                  `json:"should_block"`
	SuggestedAction types.SuggestedAction `json:"suggested_action"`
}

// NewAnalysis builds an Analysis. Signal scores are clamped to [0, 100] and the
// aggregate is their maximum.
func NewAnalysis(iocs ioc.Set, signals []Signal) *Analysis {
	clamped := make([]Signal, 0, len(signals))
	for _, s := range signals {
		s.Score = ClampScore(s.Score)
		clamped = append(clamped, s)
	}

	score := AggregateScore(clamped)
	return &Analysis{
		AggregateScore:  score,
		Signals:         clamped,
		IOCs:            iocs,
		ShouldBlock:     score >= BlockThreshold,
		SuggestedAction: SuggestAction(score),
	}
}

// AggregateScore is the highest signal score, or 0 with no signals.
func AggregateScore(signals []Signal) int {
	score := 0
	for _, s := range signals {
		if s.Score > score {
			score = s.Score
		}
	}
	return ClampScore(score)
}

func SuggestAction(score int) types.SuggestedAction {
	switch {
	case score >= BanThreshold:
		return types.ActionBanUser
	case score >= BlockThreshold:
		return types.ActionDeleteMessage
	case score >= AlertThreshold:
		return types.ActionAlertMods
	default:
		return types.ActionNone
	}
}

func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// ShouldAlert reports whether the analysis crosses the alert threshold.
func (x *Analysis) ShouldAlert() bool {
	return x != nil && x.AggregateScore >= AlertThreshold
}

// TopSignal returns the highest scoring signal. ok is false without signals.
func (x *Analysis) TopSignal() (Signal, bool) {
	if x == nil || len(x.Signals) == 0 {
		return Signal{}, false
	}
	top := x.Signals[0]
	for _, s := range x.Signals[1:] {
		if s.Score > top.Score {
			top = s
		}
	}
	return top, true
}

func (x *Analysis) LogValue() slog.Value {
	if x == nil {
		return slog.StringValue("(nil)")
	}
	return slog.GroupValue(
		slog.Int("aggregate_score", x.AggregateScore),
		slog.Int("signals", len(x.Signals)),
		slog.Int("iocs", x.IOCs.Count()),
		slog.Bool("should_block", x.ShouldBlock),
		slog.String("suggested_action", x.SuggestedAction.String()),
	)
}

// URLMatch is one URL reputation hit.
type URLMatch struct {
	URL          string `json:"url"`
	ThreatType   string `json:"threat_type"`
	PlatformType string `json:"platform_type,omitempty"`
}

// FileReport is a file reputation verdict broken down by engine outcome.
type FileReport struct {
	SHA256     string `json:"sha256"`
	Name       string `json:"name,omitempty"`
	Malicious  int    `json:"malicious"`
	Suspicious int    `json:"suspicious"`
	Undetected int    `json:"undetected"`
	Harmless   int    `json:"harmless"`
}

func (x FileReport) Total() int {
	return x.Malicious + x.Suspicious + x.Undetected + x.Harmless
}

// DetectionRate is the share of engines flagging the file as malicious or
// suspicious, in percent and capped at 100.
func (x FileReport) DetectionRate() int {
	total := x.Total()
	if total == 0 {
		return 0
	}
	return ClampScore((x.Malicious + x.Suspicious) * 100 / total)
}
