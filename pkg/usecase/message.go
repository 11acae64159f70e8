package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/model/entity"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/event"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/model/threat"
	"github.com/secmon-lab/bastion/pkg/utils/clock"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
)

var mentionPattern = regexp.MustCompile(`<@[!&]?\d+>`)

// HandleMessage scores a chat message and raises an alert when it crosses
// the alert threshold. A message mentioning the bot that is not itself a
// threat is answered by the assistant.
func (u *UseCases) HandleMessage(ctx context.Context, msg event.Message) error {
	if err := msg.Validate(); err != nil {
		logging.From(ctx).Warn("dropping malformed message event", logging.ErrAttr(err))
		return nil
	}
	if msg.AuthorIsBot {
		return nil
	}
	if strings.TrimSpace(msg.Content) == "" && len(msg.Attachments) == 0 {
		return nil
	}

	logger := logging.From(ctx).With(
		slog.String("message_id", msg.ID.String()),
		slog.String("community_id", msg.CommunityID.String()),
		slog.String("author_id", msg.AuthorID.String()),
	)
	ctx = logging.With(ctx, logger)

	u.trackEntities(ctx, msg)

	analysis := u.engine.Analyze(ctx, msg.Content, msg.Attachments)
	logger.Debug("message analyzed", slog.Any("analysis", analysis))

	if analysis.ShouldBlock && u.autoDelete && u.platform != nil {
		if err := u.platform.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
			logger.Warn("failed to auto-delete message", logging.ErrAttr(err))
		} else {
			logger.Info("message auto-deleted", slog.Int("score", analysis.AggregateScore))
		}
	}

	if analysis.ShouldAlert() {
		if msg.IsDirect() {
			logger.Info("threat in direct message, no community to alert", slog.Int("score", analysis.AggregateScore))
			return nil
		}
		return u.raiseMessageAlert(ctx, msg, analysis)
	}

	if msg.MentionsBot {
		u.answer(ctx, msg)
	}
	return nil
}

func (u *UseCases) trackEntities(ctx context.Context, msg event.Message) {
	if msg.IsDirect() {
		return
	}

	logger := logging.From(ctx)
	if _, err := u.repository.GetOrCreateEntity(ctx, entity.KindCommunity, msg.CommunityID.String(), nil); err != nil {
		logger.Warn("failed to track community", logging.ErrAttr(err))
	}
	attrs := map[string]string{"name": msg.AuthorName}
	if _, err := u.repository.GetOrCreateEntity(ctx, entity.KindMember, entity.MemberKey(msg.CommunityID, msg.AuthorID), attrs); err != nil {
		logger.Warn("failed to track member", logging.ErrAttr(err))
	}
}

func (u *UseCases) raiseMessageAlert(ctx context.Context, msg event.Message, analysis *threat.Analysis) error {
	alert := incident.NewAlert(analysis, msg.CommunityID, msg.ChannelID, msg.ID, msg.AuthorID, clock.Now(ctx))
	if u.intel != nil {
		alert.Enrichment = u.intel.Enrich(ctx, analysis, msg.ID.String())
	}

	if u.dispatcher == nil {
		logging.From(ctx).Warn("alert dropped, no dispatcher configured", slog.Any("alert", alert))
		return nil
	}
	if err := u.dispatcher.Raise(ctx, alert); err != nil {
		return goerr.Wrap(err, "failed to raise message alert",
			goerr.TV(errs.MessageIDKey, msg.ID),
			goerr.TV(errs.CommunityIDKey, msg.CommunityID))
	}
	return nil
}

func (u *UseCases) answer(ctx context.Context, msg event.Message) {
	if u.assistant == nil || u.platform == nil {
		return
	}

	question := strings.TrimSpace(mentionPattern.ReplaceAllString(msg.Content, ""))
	reply := u.assistant.Ask(ctx, msg.CommunityID, question)
	if err := u.platform.SendMessage(ctx, msg.ChannelID, reply); err != nil {
		logging.From(ctx).Warn("failed to send assistant reply", logging.ErrAttr(err))
	}
}
