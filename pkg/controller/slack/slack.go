package slack

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/event"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/utils/async"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
	"github.com/slack-go/slack"
)

// Responder posts a message to an interaction's response_url.
type Responder func(ctx context.Context, url string, msg *slack.WebhookMessage) error

type Controller struct {
	uc      interfaces.EventUsecases
	respond Responder
}

type Option func(*Controller)

func WithResponder(r Responder) Option {
	return func(c *Controller) {
		c.respond = r
	}
}

func New(uc interfaces.EventUsecases, opts ...Option) *Controller {
	c := &Controller{
		uc:      uc,
		respond: slack.PostWebhookContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleSlackInteraction routes alert button presses to the usecases. The
// alert message itself is rewritten by the notifier; the analyst gets the
// outcome as an ephemeral reply.
func (x *Controller) HandleSlackInteraction(ctx context.Context, interaction slack.InteractionCallback) error {
	logger := logging.From(ctx).With(
		slog.String("interaction_type", string(interaction.Type)),
		slog.String("user_id", interaction.User.ID),
	)
	ctx = logging.With(ctx, logger)

	if interaction.Type != slack.InteractionTypeBlockActions {
		logger.Debug("ignoring slack interaction")
		return nil
	}

	var clicks []event.ButtonClick
	for _, action := range interaction.ActionCallback.BlockActions {
		if action == nil {
			continue
		}
		analystAction, err := incident.ParseSlackActionID(action.ActionID)
		if err != nil {
			logger.Debug("ignoring foreign block action", slog.String("action_id", action.ActionID))
			continue
		}
		clicks = append(clicks, event.ButtonClick{
			Source:    event.ButtonSourceSlack,
			AlertID:   types.AlertID(action.Value),
			Action:    analystAction,
			AnalystID: interaction.User.ID,
			ChannelID: interaction.Channel.ID,
			MessageID: interaction.Message.Timestamp,
		})
	}
	if len(clicks) == 0 {
		return nil
	}

	responseURL := interaction.ResponseURL
	async.Dispatch(ctx, func(ctx context.Context) error {
		for _, click := range clicks {
			outcome := x.uc.HandleAlertAction(ctx, click)
			if responseURL == "" {
				continue
			}
			msg := &slack.WebhookMessage{
				Text:            outcome.Message,
				ResponseType:    slack.ResponseTypeEphemeral,
				ReplaceOriginal: false,
			}
			if err := x.respond(ctx, responseURL, msg); err != nil {
				return goerr.Wrap(err, "failed to reply to slack interaction",
					goerr.T(errs.TagSlackError),
					goerr.TV(errs.AlertIDKey, click.AlertID))
			}
		}
		return nil
	})
	return nil
}
