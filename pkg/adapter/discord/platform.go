// Package discord implements the hosting-platform collaborators on top of
// discordgo: remediation calls, the analyst alert notifier and the
// attachment downloader.
package discord

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/types"
)

// Discord refuses to delete more than seven days of history on ban.
const maxDeleteMessageDays = 7

type Platform struct {
	session interfaces.DiscordSession
}

var _ interfaces.Platform = &Platform{}

func NewPlatform(session interfaces.DiscordSession) *Platform {
	return &Platform{session: session}
}

func (x *Platform) DeleteMessage(ctx context.Context, channelID types.ChannelID, messageID types.MessageID) error {
	if err := x.session.ChannelMessageDelete(channelID.String(), messageID.String(), discordgo.WithContext(ctx)); err != nil {
		return goerr.Wrap(err, "failed to delete message", goerr.T(errs.TagDiscordError), classify(err),
			goerr.TV(errs.ChannelIDKey, channelID),
			goerr.TV(errs.MessageIDKey, messageID))
	}
	return nil
}

func (x *Platform) TimeoutMember(ctx context.Context, communityID types.CommunityID, userID types.UserID, until time.Time, reason string) error {
	if err := x.session.GuildMemberTimeout(communityID.String(), userID.String(), &until, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason)); err != nil {
		return goerr.Wrap(err, "failed to timeout member", goerr.T(errs.TagDiscordError), classify(err),
			goerr.TV(errs.CommunityIDKey, communityID),
			goerr.TV(errs.UserIDKey, userID))
	}
	return nil
}

func (x *Platform) BanMember(ctx context.Context, communityID types.CommunityID, userID types.UserID, reason string, deleteMessageDays int) error {
	days := min(max(deleteMessageDays, 0), maxDeleteMessageDays)
	if err := x.session.GuildBanCreateWithReason(communityID.String(), userID.String(), reason, days, discordgo.WithContext(ctx)); err != nil {
		return goerr.Wrap(err, "failed to ban member", goerr.T(errs.TagDiscordError), classify(err),
			goerr.TV(errs.CommunityIDKey, communityID),
			goerr.TV(errs.UserIDKey, userID))
	}
	return nil
}

func (x *Platform) RemoveMember(ctx context.Context, communityID types.CommunityID, userID types.UserID, reason string) error {
	if err := x.session.GuildMemberDeleteWithReason(communityID.String(), userID.String(), reason, discordgo.WithContext(ctx)); err != nil {
		return goerr.Wrap(err, "failed to remove member", goerr.T(errs.TagDiscordError), classify(err),
			goerr.TV(errs.CommunityIDKey, communityID),
			goerr.TV(errs.UserIDKey, userID))
	}
	return nil
}

// RaiseVerificationLevel moves the guild one verification level up. A guild
// already at the highest level is left untouched.
func (x *Platform) RaiseVerificationLevel(ctx context.Context, communityID types.CommunityID) error {
	guild, err := x.session.Guild(communityID.String(), discordgo.WithContext(ctx))
	if err != nil {
		return goerr.Wrap(err, "failed to get guild", goerr.T(errs.TagDiscordError), classify(err), goerr.TV(errs.CommunityIDKey, communityID))
	}

	if guild.VerificationLevel >= discordgo.VerificationLevelVeryHigh {
		return nil
	}
	next := guild.VerificationLevel + 1

	params := &discordgo.GuildParams{VerificationLevel: &next}
	if _, err := x.session.GuildEdit(communityID.String(), params, discordgo.WithContext(ctx), discordgo.WithAuditLogReason("raid mitigation")); err != nil {
		return goerr.Wrap(err, "failed to raise verification level", goerr.T(errs.TagDiscordError), classify(err),
			goerr.TV(errs.CommunityIDKey, communityID),
			goerr.V("level", next))
	}
	return nil
}

func (x *Platform) SendMessage(ctx context.Context, channelID types.ChannelID, content string) error {
	if _, err := x.session.ChannelMessageSend(channelID.String(), content, discordgo.WithContext(ctx)); err != nil {
		return goerr.Wrap(err, "failed to send message", goerr.T(errs.TagDiscordError), classify(err), goerr.TV(errs.ChannelIDKey, channelID))
	}
	return nil
}

// classify maps a discordgo error to an error tag by HTTP status and Discord
// JSON error code.
func classify(err error) goerr.Option {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return goerr.T(errs.TagExternal)
	}

	status := 0
	if restErr.Response != nil {
		status = restErr.Response.StatusCode
	}
	code := 0
	if restErr.Message != nil {
		code = restErr.Message.Code
	}

	switch {
	case code == discordgo.ErrCodeMissingPermissions, code == discordgo.ErrCodeMissingAccess,
		status == http.StatusForbidden, status == http.StatusUnauthorized:
		return goerr.T(errs.TagForbidden)
	case status == http.StatusNotFound:
		return goerr.T(errs.TagNotFound)
	case status == http.StatusTooManyRequests:
		return goerr.T(errs.TagRateLimit)
	}
	return goerr.T(errs.TagExternal)
}
