package interfaces

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/slack-go/slack"
)

// Platform is the set of remediation operations the hosting chat platform
// exposes. Permission failures are returned tagged errs.TagForbidden.
type Platform interface {
	DeleteMessage(ctx context.Context, channelID types.ChannelID, messageID types.MessageID) error
	TimeoutMember(ctx context.Context, communityID types.CommunityID, userID types.UserID, until time.Time, reason string) error
	// BanMember bans the user and deletes their messages from the last
	// deleteMessageDays days.
	BanMember(ctx context.Context, communityID types.CommunityID, userID types.UserID, reason string, deleteMessageDays int) error
	RemoveMember(ctx context.Context, communityID types.CommunityID, userID types.UserID, reason string) error
	RaiseVerificationLevel(ctx context.Context, communityID types.CommunityID) error
	SendMessage(ctx context.Context, channelID types.ChannelID, content string) error
}

// DiscordSession is the subset of *discordgo.Session used by the Discord
// adapter.
type DiscordSession interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	GuildMemberTimeout(guildID string, userID string, until *time.Time, options ...discordgo.RequestOption) error
	GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error
	GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildEdit(guildID string, g *discordgo.GuildParams, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type SlackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
}

// Downloader fetches attachment bodies, refusing anything over maxBytes.
type Downloader interface {
	Download(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}
