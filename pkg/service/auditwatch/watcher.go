// Package auditwatch flags moderators performing destructive actions at a
// rate that suggests a compromised or rogue account.
package auditwatch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/event"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/model/ioc"
	"github.com/secmon-lab/bastion/pkg/domain/model/threat"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/utils/clock"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
)

const MassModerationScore = 85

// Raiser accepts alerts produced by the watcher.
type Raiser interface {
	Raise(ctx context.Context, alert *incident.Alert) error
}

type Config struct {
	Threshold int
	Window    time.Duration
}

func DefaultConfig() Config {
	return Config{Threshold: 5, Window: time.Minute}
}

type Watcher struct {
	store  interfaces.CounterStore
	raiser Raiser
	cfg    Config
}

func New(store interfaces.CounterStore, raiser Raiser, cfg Config) *Watcher {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	return &Watcher{store: store, raiser: raiser, cfg: cfg}
}

func actionsKey(entry event.AuditLogEntry) string {
	return "audit:actions:" + entry.CommunityID.String() + ":" + entry.ActorID.String()
}

func alertedKey(entry event.AuditLogEntry) string {
	return "audit:alerted:" + entry.CommunityID.String() + ":" + entry.ActorID.String()
}

// Record counts a destructive entry against its actor and raises one
// mass_moderation alert per window once the threshold is reached. It
// returns true when an alert was raised. Only a malformed entry is an error;
// store failures are logged and treated as no detection.
func (x *Watcher) Record(ctx context.Context, entry event.AuditLogEntry) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, err
	}
	if !entry.Action.Destructive() {
		return false, nil
	}

	logger := logging.From(ctx).With(
		slog.String("community_id", entry.CommunityID.String()),
		slog.String("actor_id", entry.ActorID.String()),
		slog.String("action", string(entry.Action)),
	)

	now := clock.Now(ctx)
	member := entry.ID
	if member == "" {
		member = entry.TargetID + ":" + strconv.FormatInt(now.UnixNano(), 10)
	}

	count, err := x.store.RecordInWindow(ctx, actionsKey(entry), member, now, x.cfg.Window)
	if err != nil {
		logger.Warn("failed to record audit log entry", logging.ErrAttr(err))
		return false, nil
	}
	if count < int64(x.cfg.Threshold) {
		return false, nil
	}

	first, err := x.store.SetNX(ctx, alertedKey(entry), entry.ID, x.cfg.Window)
	if err != nil {
		logger.Warn("failed to set alert flag, raising anyway", logging.ErrAttr(err))
	} else if !first {
		return false, nil
	}

	signal := threat.Signal{
		Kind:          types.SignalMassModeration,
		Score:         MassModerationScore,
		Indicator:     entry.ActorID.String(),
		IndicatorType: types.IndicatorUser,
		Source:        "audit_log",
		Description: fmt.Sprintf("%d destructive moderation actions within %s (latest: %s)",
			count, x.cfg.Window, entry.Action),
		Metadata: map[string]any{"count": count, "latest_action": string(entry.Action)},
	}
	analysis := threat.NewAnalysis(ioc.Set{}, []threat.Signal{signal})
	alert := incident.NewAlert(analysis, entry.CommunityID, "", "", entry.ActorID, now)

	if err := x.raiser.Raise(ctx, alert); err != nil {
		return false, goerr.Wrap(err, "failed to raise mass moderation alert")
	}
	logger.Warn("mass moderation detected", slog.Int64("count", count))
	return true, nil
}
