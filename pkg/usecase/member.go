package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/model/entity"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/event"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/model/ioc"
	"github.com/secmon-lab/bastion/pkg/domain/model/threat"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/service/raid"
	"github.com/secmon-lab/bastion/pkg/utils/clock"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
)

// NewAccountScore is the score of the alert raised for a member whose
// account is younger than the configured minimum age.
const NewAccountScore = threat.AlertThreshold

// HandleMemberJoin feeds the join into raid detection and checks the
// account age of the member.
func (u *UseCases) HandleMemberJoin(ctx context.Context, join event.MemberJoin) error {
	if err := join.Validate(); err != nil {
		logging.From(ctx).Warn("dropping malformed member join event", logging.ErrAttr(err))
		return nil
	}

	logger := logging.From(ctx).With(
		slog.String("community_id", join.CommunityID.String()),
		slog.String("user_id", join.UserID.String()),
	)
	ctx = logging.With(ctx, logger)

	attrs := map[string]string{"name": join.Username}
	if _, err := u.repository.GetOrCreateEntity(ctx, entity.KindMember, entity.MemberKey(join.CommunityID, join.UserID), attrs); err != nil {
		logger.Warn("failed to track member", logging.ErrAttr(err))
	}

	if u.raid != nil && u.raid.RecordJoinAndCheck(ctx, join.CommunityID, join.UserID) {
		report := u.raid.TriggerMitigation(ctx, join.CommunityID, join.UserID)
		logger.Warn("raid detected", slog.String("report", report.Summary()))
	}

	if join.IsBot {
		return nil
	}
	now := clock.Now(ctx)
	if raid.ValidateAccountAge(now, join.AccountCreatedAt, u.minAccountAgeDays) {
		return nil
	}
	return u.raiseNewAccountAlert(ctx, join, now)
}

func (u *UseCases) raiseNewAccountAlert(ctx context.Context, join event.MemberJoin, now time.Time) error {
	logger := logging.From(ctx)
	if u.dispatcher == nil {
		logger.Warn("new account alert dropped, no dispatcher configured")
		return nil
	}

	active, err := u.repository.CountActive(ctx, types.SignalNewAccount, join.UserID, join.CommunityID)
	if err != nil {
		logger.Warn("failed to count active alerts, raising anyway", logging.ErrAttr(err))
	} else if active > 0 {
		logger.Debug("new account alert already open", slog.Int("active", active))
		return nil
	}

	age := raid.AccountAge(now, join.AccountCreatedAt)
	signal := threat.Signal{
		Kind:          types.SignalNewAccount,
		Score:         NewAccountScore,
		Indicator:     join.UserID.String(),
		IndicatorType: types.IndicatorUser,
		Source:        "member_join",
		Description: fmt.Sprintf("%s joined with an account created %s (minimum age %d days)",
			join.Username, age, u.minAccountAgeDays),
		Metadata: map[string]any{
			"account_created_at": join.AccountCreatedAt,
			"min_age_days":       u.minAccountAgeDays,
		},
	}
	analysis := threat.NewAnalysis(ioc.Set{}, []threat.Signal{signal})
	alert := incident.NewAlert(analysis, join.CommunityID, "", "", join.UserID, now)

	if err := u.dispatcher.Raise(ctx, alert); err != nil {
		return goerr.Wrap(err, "failed to raise new account alert",
			goerr.TV(errs.CommunityIDKey, join.CommunityID),
			goerr.TV(errs.UserIDKey, join.UserID))
	}
	return nil
}

// HandleAuditLogEntry feeds moderation log entries into the mass moderation
// watcher.
func (u *UseCases) HandleAuditLogEntry(ctx context.Context, entry event.AuditLogEntry) error {
	if u.watcher == nil {
		return nil
	}

	raised, err := u.watcher.Record(ctx, entry)
	if err != nil {
		if goerr.HasTag(err, errs.TagInvalidRequest) {
			logging.From(ctx).Warn("dropping malformed audit log entry", logging.ErrAttr(err))
			return nil
		}
		return err
	}
	if raised {
		logging.From(ctx).Info("mass moderation alert raised",
			slog.String("community_id", entry.CommunityID.String()),
			slog.String("actor_id", entry.ActorID.String()))
	}
	return nil
}

// HandleAlertAction applies an analyst button press. The returned outcome
// message is shown to the analyst as is.
func (u *UseCases) HandleAlertAction(ctx context.Context, click event.ButtonClick) incident.Outcome {
	if err := click.Validate(); err != nil {
		logging.From(ctx).Warn("dropping malformed button click", logging.ErrAttr(err))
		return incident.Outcome{
			AlertID:   click.AlertID,
			Action:    click.Action,
			AnalystID: click.AnalystID,
			Message:   "This button is not recognised.",
		}
	}
	if u.dispatcher == nil {
		return incident.Outcome{
			AlertID:   click.AlertID,
			Action:    click.Action,
			AnalystID: click.AnalystID,
			Message:   "Alert handling is not configured.",
		}
	}

	ctx = logging.With(ctx, logging.From(ctx).With(
		slog.String("alert_id", click.AlertID.String()),
		slog.String("source", string(click.Source)),
	))
	return u.dispatcher.HandleAction(ctx, click.AlertID, click.Action, click.AnalystID)
}
