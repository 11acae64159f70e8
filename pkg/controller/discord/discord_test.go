package discord_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/m-mizutani/gt"
	ctrl "github.com/secmon-lab/bastion/pkg/controller/discord"
	"github.com/secmon-lab/bastion/pkg/domain/mock"
	"github.com/secmon-lab/bastion/pkg/domain/model/event"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/utils/async"
)

type recorder struct {
	mu       sync.Mutex
	messages []event.Message
	joins    []event.MemberJoin
	entries  []event.AuditLogEntry
	clicks   []event.ButtonClick
}

func (r *recorder) HandleMessage(ctx context.Context, msg event.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recorder) HandleMemberJoin(ctx context.Context, join event.MemberJoin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joins = append(r.joins, join)
	return nil
}

func (r *recorder) HandleAuditLogEntry(ctx context.Context, entry event.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recorder) HandleAlertAction(ctx context.Context, click event.ButtonClick) incident.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clicks = append(r.clicks, click)
	return incident.Outcome{AlertID: click.AlertID, Action: click.Action, Success: true, Message: "User has been banned."}
}

func TestToMessage(t *testing.T) {
	m := &discordgo.Message{
		ID:        "m1",
		GuildID:   "g1",
		ChannelID: "c1",
		Content:   "hey <@999> is this link safe?",
		Author:    &discordgo.User{ID: "u1", Username: "alice"},
		Attachments: []*discordgo.MessageAttachment{
			{Filename: "invoice.pdf", URL: "https://cdn.example/invoice.pdf", Size: 1024, ContentType: "application/pdf"},
		},
		Mentions:  []*discordgo.User{{ID: "999"}},
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	msg := ctrl.ToMessage(m, "999")
	gt.Equal(t, msg.ID, types.MessageID("m1"))
	gt.Equal(t, msg.CommunityID, types.CommunityID("g1"))
	gt.Equal(t, msg.AuthorName, "alice")
	gt.True(t, msg.MentionsBot)
	gt.A(t, msg.Attachments).Length(1)
	gt.Equal(t, msg.Attachments[0].Size, int64(1024))

	gt.False(t, ctrl.ToMessage(m, "12345").MentionsBot)
}

func TestToMemberJoin(t *testing.T) {
	// Snowflake 175928847299117063 was created at 2016-04-30 11:18:25.796 UTC.
	join := ctrl.ToMemberJoin(&discordgo.Member{
		GuildID:  "g1",
		User:     &discordgo.User{ID: "175928847299117063", Username: "bob"},
		JoinedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	gt.Equal(t, join.UserID, types.UserID("175928847299117063"))
	gt.Equal(t, join.AccountCreatedAt.UTC().Year(), 2016)
}

func TestToAuditLogEntry(t *testing.T) {
	raw := json.RawMessage(`{"id":"a1","guild_id":"g1","user_id":"mod1","target_id":"u9","action_type":22,"reason":"spam"}`)
	entry, err := ctrl.ToAuditLogEntry(raw)
	gt.NoError(t, err)
	gt.Equal(t, entry.CommunityID, types.CommunityID("g1"))
	gt.Equal(t, entry.ActorID, types.UserID("mod1"))
	gt.Equal(t, entry.Action, event.AuditMemberBan)

	entry, err = ctrl.ToAuditLogEntry(json.RawMessage(`{"id":"a2","guild_id":"g1","user_id":"mod1","action_type":1}`))
	gt.NoError(t, err)
	gt.Equal(t, entry.Action, event.AuditOther)

	_, err = ctrl.ToAuditLogEntry(json.RawMessage(`{`))
	gt.Error(t, err)
}

func TestHandleEventsDispatch(t *testing.T) {
	rec := &recorder{}
	c := ctrl.New(rec, &mock.DiscordSessionMock{})
	c.SetBotID("bot")
	ctx := async.WithSync(t.Context())

	c.HandleMessageCreate(ctx, &discordgo.Message{ID: "m1", ChannelID: "c1", Author: &discordgo.User{ID: "u1"}, Content: "hi"})
	c.HandleMessageCreate(ctx, &discordgo.Message{ID: "m2", ChannelID: "c1", Author: &discordgo.User{ID: "bot"}, Content: "own"})
	c.HandleGuildMemberAdd(ctx, &discordgo.Member{GuildID: "g1", User: &discordgo.User{ID: "175928847299117063"}})
	c.HandleAuditLogEntry(ctx, json.RawMessage(`{"id":"a1","guild_id":"g1","user_id":"mod1","action_type":20}`))

	gt.A(t, rec.messages).Length(1)
	gt.A(t, rec.joins).Length(1)
	gt.A(t, rec.entries).Length(1)
	gt.Equal(t, rec.entries[0].Action, event.AuditMemberKick)
}

func TestHandleInteraction(t *testing.T) {
	var edited string
	session := &mock.DiscordSessionMock{
		InteractionRespondFunc: func(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
			gt.Equal(t, resp.Type, discordgo.InteractionResponseDeferredChannelMessageWithSource)
			return nil
		},
		InteractionResponseEditFunc: func(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
			edited = *newresp.Content
			return &discordgo.Message{}, nil
		},
	}
	rec := &recorder{}
	c := ctrl.New(rec, session)

	alertID := types.NewAlertID()
	i := &discordgo.Interaction{
		Type:      discordgo.InteractionMessageComponent,
		ChannelID: "mods",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "analyst-1"}},
		Message:   &discordgo.Message{ID: "alert-msg"},
		Data:      discordgo.MessageComponentInteractionData{CustomID: incident.DiscordCustomID(types.AnalystBan, alertID)},
	}
	c.HandleInteraction(async.WithSync(t.Context()), i)

	gt.A(t, rec.clicks).Length(1)
	gt.Equal(t, rec.clicks[0], event.ButtonClick{
		Source:    event.ButtonSourceDiscord,
		AlertID:   alertID,
		Action:    types.AnalystBan,
		AnalystID: "analyst-1",
		ChannelID: "mods",
		MessageID: "alert-msg",
	})
	gt.Equal(t, edited, "User has been banned.")

	t.Run("foreign custom id is ignored", func(t *testing.T) {
		i.Data = discordgo.MessageComponentInteractionData{CustomID: "poll:vote:1"}
		c.HandleInteraction(async.WithSync(t.Context()), i)
		gt.A(t, rec.clicks).Length(1)
		gt.Equal(t, session.Calls("InteractionRespond"), 1)
	})
}
