// Package discord decodes Discord gateway events into the narrow event
// structs and hands them to the usecases off the gateway goroutine.
package discord

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/event"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/utils/async"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
	"github.com/secmon-lab/bastion/pkg/utils/request_id"
)

const auditLogEntryCreate = "GUILD_AUDIT_LOG_ENTRY_CREATE"

// Intents are the gateway intents the controller needs.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildBans |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

type Controller struct {
	uc      interfaces.EventUsecases
	session interfaces.DiscordSession

	mu    sync.RWMutex
	botID string
}

func New(uc interfaces.EventUsecases, session interfaces.DiscordSession) *Controller {
	return &Controller{uc: uc, session: session}
}

// Register attaches the gateway handlers to s. ctx carries the logger used
// for every event.
func (x *Controller) Register(ctx context.Context, s *discordgo.Session) {
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			x.SetBotID(r.User.ID)
			logging.From(ctx).Info("discord gateway ready", slog.String("bot_id", r.User.ID), slog.Int("guilds", len(r.Guilds)))
		}
	})
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		x.HandleMessageCreate(ctx, m.Message)
	})
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
		x.HandleGuildMemberAdd(ctx, m.Member)
	})
	s.AddHandler(func(_ *discordgo.Session, e *discordgo.Event) {
		if e.Type == auditLogEntryCreate {
			x.HandleAuditLogEntry(ctx, e.RawData)
		}
	})
	s.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		x.HandleInteraction(ctx, i.Interaction)
	})
}

func (x *Controller) SetBotID(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.botID = id
}

func (x *Controller) BotID() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.botID
}

func eventContext(ctx context.Context, kind string) context.Context {
	ctx, reqID := request_id.Generate(ctx)
	return logging.With(ctx, logging.From(ctx).With(
		slog.String("request_id", reqID),
		slog.String("event", kind),
	))
}

func (x *Controller) HandleMessageCreate(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.Author == nil {
		return
	}
	botID := x.BotID()
	if m.Author.ID == botID {
		return
	}

	msg := toMessage(m, botID)
	ctx = eventContext(ctx, "message_create")
	async.Dispatch(ctx, func(ctx context.Context) error {
		return x.uc.HandleMessage(ctx, msg)
	})
}

func (x *Controller) HandleGuildMemberAdd(ctx context.Context, m *discordgo.Member) {
	if m == nil || m.User == nil {
		return
	}

	join := toMemberJoin(m)
	ctx = eventContext(ctx, "guild_member_add")
	async.Dispatch(ctx, func(ctx context.Context) error {
		return x.uc.HandleMemberJoin(ctx, join)
	})
}

// HandleAuditLogEntry decodes the raw gateway payload itself so that the
// guild ID is kept alongside the entry.
func (x *Controller) HandleAuditLogEntry(ctx context.Context, raw json.RawMessage) {
	ctx = eventContext(ctx, "audit_log_entry_create")

	entry, err := toAuditLogEntry(raw)
	if err != nil {
		logging.From(ctx).Warn("dropping undecodable audit log entry", logging.ErrAttr(err))
		return
	}
	async.Dispatch(ctx, func(ctx context.Context) error {
		return x.uc.HandleAuditLogEntry(ctx, entry)
	})
}

// HandleInteraction acknowledges an alert button press at once with an
// ephemeral deferred reply, then applies the action and edits the reply to
// the outcome.
func (x *Controller) HandleInteraction(ctx context.Context, i *discordgo.Interaction) {
	if i == nil || i.Type != discordgo.InteractionMessageComponent {
		return
	}
	ctx = eventContext(ctx, "interaction_create")
	logger := logging.From(ctx)

	customID := i.MessageComponentData().CustomID
	action, alertID, err := incident.ParseDiscordCustomID(customID)
	if err != nil {
		logger.Debug("ignoring foreign component interaction", slog.String("custom_id", customID))
		return
	}

	ack := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}
	if err := x.session.InteractionRespond(i, ack, discordgo.WithContext(ctx)); err != nil {
		errs.Handle(ctx, goerr.Wrap(err, "failed to acknowledge interaction",
			goerr.T(errs.TagDiscordError),
			goerr.TV(errs.AlertIDKey, alertID)))
		return
	}

	click := event.ButtonClick{
		Source:    event.ButtonSourceDiscord,
		AlertID:   alertID,
		Action:    action,
		AnalystID: interactionUserID(i),
		ChannelID: i.ChannelID,
	}
	if i.Message != nil {
		click.MessageID = i.Message.ID
	}

	async.Dispatch(ctx, func(ctx context.Context) error {
		outcome := x.uc.HandleAlertAction(ctx, click)
		content := outcome.Message
		if _, err := x.session.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content}, discordgo.WithContext(ctx)); err != nil {
			return goerr.Wrap(err, "failed to send interaction outcome",
				goerr.T(errs.TagDiscordError),
				goerr.TV(errs.AlertIDKey, alertID))
		}
		return nil
	})
}

func toMessage(m *discordgo.Message, botID string) event.Message {
	msg := event.Message{
		ID:          types.MessageID(m.ID),
		CommunityID: types.CommunityID(m.GuildID),
		ChannelID:   types.ChannelID(m.ChannelID),
		AuthorID:    types.UserID(m.Author.ID),
		AuthorName:  m.Author.Username,
		AuthorIsBot: m.Author.Bot,
		Content:     m.Content,
		CreatedAt:   m.Timestamp,
	}

	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, event.Attachment{
			Filename:    a.Filename,
			URL:         a.URL,
			Size:        int64(a.Size),
			ContentType: a.ContentType,
		})
	}

	if botID != "" {
		for _, u := range m.Mentions {
			if u != nil && u.ID == botID {
				msg.MentionsBot = true
				break
			}
		}
		if !msg.MentionsBot {
			msg.MentionsBot = strings.Contains(m.Content, "<@"+botID+">") ||
				strings.Contains(m.Content, "<@!"+botID+">")
		}
	}
	return msg
}

func toMemberJoin(m *discordgo.Member) event.MemberJoin {
	join := event.MemberJoin{
		CommunityID: types.CommunityID(m.GuildID),
		UserID:      types.UserID(m.User.ID),
		Username:    m.User.Username,
		IsBot:       m.User.Bot,
		JoinedAt:    m.JoinedAt,
	}
	if join.JoinedAt.IsZero() {
		join.JoinedAt = time.Now()
	}
	// The account creation time is encoded in the user's snowflake ID.
	if created, err := discordgo.SnowflakeTimestamp(m.User.ID); err == nil {
		join.AccountCreatedAt = created
	}
	return join
}

type auditLogEntryPayload struct {
	discordgo.AuditLogEntry
	GuildID string `json:"guild_id"`
}

func toAuditLogEntry(raw json.RawMessage) (event.AuditLogEntry, error) {
	var payload auditLogEntryPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return event.AuditLogEntry{}, goerr.Wrap(err, "failed to decode audit log entry", goerr.T(errs.TagInvalidRequest))
	}

	entry := event.AuditLogEntry{
		ID:          payload.ID,
		CommunityID: types.CommunityID(payload.GuildID),
		ActorID:     types.UserID(payload.UserID),
		TargetID:    payload.TargetID,
		Action:      event.AuditOther,
		Reason:      payload.Reason,
	}
	if payload.ActionType != nil {
		entry.Action = auditAction(*payload.ActionType)
	}
	return entry, nil
}

func auditAction(action discordgo.AuditLogAction) event.AuditAction {
	switch action {
	case discordgo.AuditLogActionMemberBanAdd:
		return event.AuditMemberBan
	case discordgo.AuditLogActionMemberKick:
		return event.AuditMemberKick
	case discordgo.AuditLogActionChannelDelete:
		return event.AuditChannelDelete
	case discordgo.AuditLogActionRoleDelete:
		return event.AuditRoleDelete
	case discordgo.AuditLogActionWebhookCreate:
		return event.AuditWebhookCreate
	}
	return event.AuditOther
}

func interactionUserID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
