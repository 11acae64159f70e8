package mock

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
)

var _ interfaces.DiscordSession = &DiscordSessionMock{}

type DiscordSessionMock struct {
	ChannelMessageSendFunc          func(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplexFunc   func(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplexFunc   func(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDeleteFunc        func(channelID, messageID string, options ...discordgo.RequestOption) error
	GuildMemberTimeoutFunc          func(guildID string, userID string, until *time.Time, options ...discordgo.RequestOption) error
	GuildBanCreateWithReasonFunc    func(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error
	GuildMemberDeleteWithReasonFunc func(guildID, userID, reason string, options ...discordgo.RequestOption) error
	GuildFunc                       func(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildEditFunc                   func(guildID string, g *discordgo.GuildParams, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	InteractionRespondFunc          func(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEditFunc     func(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)

	lock  sync.Mutex
	calls map[string]int
}

func (m *DiscordSessionMock) record(name string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[name]++
}

func (m *DiscordSessionMock) Calls(name string) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.calls[name]
}

func (m *DiscordSessionMock) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.ChannelMessageSendFunc == nil {
		panic("DiscordSessionMock.ChannelMessageSendFunc: method is nil but DiscordSession.ChannelMessageSend was just called")
	}
	m.record("ChannelMessageSend")
	return m.ChannelMessageSendFunc(channelID, content, options...)
}

func (m *DiscordSessionMock) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.ChannelMessageSendComplexFunc == nil {
		panic("DiscordSessionMock.ChannelMessageSendComplexFunc: method is nil but DiscordSession.ChannelMessageSendComplex was just called")
	}
	m.record("ChannelMessageSendComplex")
	return m.ChannelMessageSendComplexFunc(channelID, data, options...)
}

func (m *DiscordSessionMock) ChannelMessageEditComplex(msg *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.ChannelMessageEditComplexFunc == nil {
		panic("DiscordSessionMock.ChannelMessageEditComplexFunc: method is nil but DiscordSession.ChannelMessageEditComplex was just called")
	}
	m.record("ChannelMessageEditComplex")
	return m.ChannelMessageEditComplexFunc(msg, options...)
}

func (m *DiscordSessionMock) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	if m.ChannelMessageDeleteFunc == nil {
		panic("DiscordSessionMock.ChannelMessageDeleteFunc: method is nil but DiscordSession.ChannelMessageDelete was just called")
	}
	m.record("ChannelMessageDelete")
	return m.ChannelMessageDeleteFunc(channelID, messageID, options...)
}

func (m *DiscordSessionMock) GuildMemberTimeout(guildID string, userID string, until *time.Time, options ...discordgo.RequestOption) error {
	if m.GuildMemberTimeoutFunc == nil {
		panic("DiscordSessionMock.GuildMemberTimeoutFunc: method is nil but DiscordSession.GuildMemberTimeout was just called")
	}
	m.record("GuildMemberTimeout")
	return m.GuildMemberTimeoutFunc(guildID, userID, until, options...)
}

func (m *DiscordSessionMock) GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error {
	if m.GuildBanCreateWithReasonFunc == nil {
		panic("DiscordSessionMock.GuildBanCreateWithReasonFunc: method is nil but DiscordSession.GuildBanCreateWithReason was just called")
	}
	m.record("GuildBanCreateWithReason")
	return m.GuildBanCreateWithReasonFunc(guildID, userID, reason, days, options...)
}

func (m *DiscordSessionMock) GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error {
	if m.GuildMemberDeleteWithReasonFunc == nil {
		panic("DiscordSessionMock.GuildMemberDeleteWithReasonFunc: method is nil but DiscordSession.GuildMemberDeleteWithReason was just called")
	}
	m.record("GuildMemberDeleteWithReason")
	return m.GuildMemberDeleteWithReasonFunc(guildID, userID, reason, options...)
}

func (m *DiscordSessionMock) Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error) {
	if m.GuildFunc == nil {
		panic("DiscordSessionMock.GuildFunc: method is nil but DiscordSession.Guild was just called")
	}
	m.record("Guild")
	return m.GuildFunc(guildID, options...)
}

func (m *DiscordSessionMock) GuildEdit(guildID string, g *discordgo.GuildParams, options ...discordgo.RequestOption) (*discordgo.Guild, error) {
	if m.GuildEditFunc == nil {
		panic("DiscordSessionMock.GuildEditFunc: method is nil but DiscordSession.GuildEdit was just called")
	}
	m.record("GuildEdit")
	return m.GuildEditFunc(guildID, g, options...)
}

func (m *DiscordSessionMock) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	if m.InteractionRespondFunc == nil {
		panic("DiscordSessionMock.InteractionRespondFunc: method is nil but DiscordSession.InteractionRespond was just called")
	}
	m.record("InteractionRespond")
	return m.InteractionRespondFunc(interaction, resp, options...)
}

func (m *DiscordSessionMock) InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.InteractionResponseEditFunc == nil {
		panic("DiscordSessionMock.InteractionResponseEditFunc: method is nil but DiscordSession.InteractionResponseEdit was just called")
	}
	m.record("InteractionResponseEdit")
	return m.InteractionResponseEditFunc(interaction, newresp, options...)
}
