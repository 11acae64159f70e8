// Package raid detects mass joins per community and mitigates them.
package raid

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/raid"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/metrics"
	"github.com/secmon-lab/bastion/pkg/utils/clock"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
)

type Config struct {
	JoinThreshold int
	Window        time.Duration
	// RecentJoins is how far back mitigation looks for members to remove.
	RecentJoins time.Duration
	// Cooldown is how long a mitigation blocks further mitigations of the
	// same community.
	Cooldown time.Duration
}

func DefaultConfig() Config {
	return Config{
		JoinThreshold: 10,
		Window:        10 * time.Second,
		RecentJoins:   60 * time.Second,
		Cooldown:      5 * time.Minute,
	}
}

type Detector struct {
	store    interfaces.CounterStore
	platform interfaces.Platform
	notifier interfaces.AlertNotifier
	cfg      Config

	mu       sync.Mutex
	inFlight map[types.CommunityID]struct{}
}

func New(store interfaces.CounterStore, platform interfaces.Platform, notifier interfaces.AlertNotifier, cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.JoinThreshold <= 0 {
		cfg.JoinThreshold = def.JoinThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.RecentJoins <= 0 {
		cfg.RecentJoins = def.RecentJoins
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &Detector{
		store:    store,
		platform: platform,
		notifier: notifier,
		cfg:      cfg,
		inFlight: map[types.CommunityID]struct{}{},
	}
}

func joinKey(communityID types.CommunityID) string {
	return "raid:joins:" + communityID.String()
}

func mitigationKey(communityID types.CommunityID) string {
	return "raid:mitigation:" + communityID.String()
}

func joinMember(userID types.UserID, at time.Time) string {
	return userID.String() + ":" + strconv.FormatInt(at.UnixNano(), 10)
}

func memberUser(member string) types.UserID {
	i := strings.LastIndex(member, ":")
	if i < 0 {
		return types.UserID(member)
	}
	return types.UserID(member[:i])
}

// RecordJoinAndCheck records a join and reports whether the community's
// joins within the window reached the threshold. A store failure is logged
// and reported as no raid.
func (x *Detector) RecordJoinAndCheck(ctx context.Context, communityID types.CommunityID, userID types.UserID) bool {
	now := clock.Now(ctx)
	logger := logging.From(ctx).With(slog.String("community_id", communityID.String()))

	// Entries are kept long enough for mitigation to find recent joiners.
	retention := max(x.cfg.Window, x.cfg.RecentJoins)
	if _, err := x.store.RecordInWindow(ctx, joinKey(communityID), joinMember(userID, now), now, retention); err != nil {
		logger.Warn("failed to record join, skipping raid check", logging.ErrAttr(err))
		return false
	}
	members, err := x.store.RangeWindow(ctx, joinKey(communityID), now.Add(-x.cfg.Window))
	if err != nil {
		logger.Warn("failed to count joins, skipping raid check", logging.ErrAttr(err))
		return false
	}
	count := int64(len(members))

	if count < int64(x.cfg.JoinThreshold) {
		return false
	}
	logger.Info("join rate reached raid threshold",
		slog.Int64("joins", count),
		slog.String("window", x.cfg.Window.String()))
	return true
}

// ValidateAccountAge reports whether an account is at least minAgeDays old.
// An unknown creation time passes.
func ValidateAccountAge(now, createdAt time.Time, minAgeDays int) bool {
	if createdAt.IsZero() || minAgeDays <= 0 {
		return true
	}
	return !createdAt.After(now.AddDate(0, 0, -minAgeDays))
}

// AccountAge renders the age of an account for alert descriptions.
func AccountAge(now, createdAt time.Time) string {
	return humanize.RelTime(createdAt, now, "old", "in the future")
}

// TriggerMitigation raises the community's verification level and removes
// members who joined recently. Only one mitigation per community runs within
// the cooldown; later calls return a skipped report and do nothing.
func (x *Detector) TriggerMitigation(ctx context.Context, communityID types.CommunityID, triggeredBy types.UserID) raid.Report {
	report := raid.Report{CommunityID: communityID, TriggeredBy: triggeredBy}
	logger := logging.From(ctx).With(slog.String("community_id", communityID.String()))

	if !x.claim(ctx, communityID, triggeredBy) {
		report.Skipped = true
		metrics.RecordRaid(true, 0)
		logger.Info("raid mitigation already in progress")
		return report
	}
	defer x.release(communityID)

	if err := x.platform.RaiseVerificationLevel(ctx, communityID); err != nil {
		logger.Warn("failed to raise verification level", logging.ErrAttr(err))
	} else {
		report.VerificationRaised = true
	}

	now := clock.Now(ctx)
	members, err := x.store.RangeWindow(ctx, joinKey(communityID), now.Add(-x.cfg.RecentJoins))
	if err != nil {
		logger.Warn("failed to list recent joins", logging.ErrAttr(err))
	}

	reason := fmt.Sprintf("raid mitigation: joined within the last %s", x.cfg.RecentJoins)
	seen := map[types.UserID]struct{}{}
	for _, m := range members {
		userID := memberUser(m)
		if _, dup := seen[userID]; dup || userID == "" {
			continue
		}
		seen[userID] = struct{}{}

		report.Attempted++
		if err := x.platform.RemoveMember(ctx, communityID, userID, reason); err != nil {
			report.Failed++
			logger.Warn("failed to remove member", logging.ErrAttr(err), slog.String("user_id", userID.String()))
			continue
		}
		report.Removed++
	}

	metrics.RecordRaid(false, report.Removed)
	logger.Info("raid mitigated",
		slog.Bool("verification_raised", report.VerificationRaised),
		slog.Int("attempted", report.Attempted),
		slog.Int("removed", report.Removed),
		slog.Int("failed", report.Failed))

	if x.notifier != nil {
		if err := x.notifier.NotifyMitigation(ctx, report); err != nil {
			logger.Warn("failed to send mitigation report", logging.ErrAttr(err))
		}
	}
	return report
}

// claim takes the per-process guard and then the shared flag. If the shared
// store is down the local guard alone decides.
func (x *Detector) claim(ctx context.Context, communityID types.CommunityID, triggeredBy types.UserID) bool {
	x.mu.Lock()
	if _, busy := x.inFlight[communityID]; busy {
		x.mu.Unlock()
		return false
	}
	x.inFlight[communityID] = struct{}{}
	x.mu.Unlock()

	ok, err := x.store.SetNX(ctx, mitigationKey(communityID), triggeredBy.String(), x.cfg.Cooldown)
	if err != nil {
		logging.From(ctx).Warn("failed to set mitigation flag, continuing", logging.ErrAttr(err))
		return true
	}
	if !ok {
		x.release(communityID)
	}
	return ok
}

func (x *Detector) release(communityID types.CommunityID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.inFlight, communityID)
}
