package discord_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/bastion/pkg/adapter/discord"
	"github.com/secmon-lab/bastion/pkg/domain/mock"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
)

func restError(status, code int) error {
	return &discordgo.RESTError{
		Response:     &http.Response{StatusCode: status, Status: http.StatusText(status)},
		ResponseBody: []byte(`{}`),
		Message:      &discordgo.APIErrorMessage{Code: code, Message: "rejected"},
	}
}

func TestPlatformDeleteMessage(t *testing.T) {
	var gotChannel, gotMessage string
	session := &mock.DiscordSessionMock{
		ChannelMessageDeleteFunc: func(channelID, messageID string, options ...discordgo.RequestOption) error {
			gotChannel, gotMessage = channelID, messageID
			return nil
		},
	}

	p := discord.NewPlatform(session)
	gt.NoError(t, p.DeleteMessage(t.Context(), "c1", "m1"))
	gt.Equal(t, gotChannel, "c1")
	gt.Equal(t, gotMessage, "m1")
}

func TestPlatformErrorTags(t *testing.T) {
	testCases := map[string]struct {
		err error
		tag string
	}{
		"missing permissions": {err: restError(http.StatusForbidden, discordgo.ErrCodeMissingPermissions), tag: errs.TagForbidden.String()},
		"unknown member":      {err: restError(http.StatusNotFound, 10007), tag: errs.TagNotFound.String()},
		"rate limited":        {err: restError(http.StatusTooManyRequests, 0), tag: errs.TagRateLimit.String()},
		"server error":        {err: restError(http.StatusBadGateway, 0), tag: errs.TagExternal.String()},
		"network":             {err: errors.New("connection reset"), tag: errs.TagExternal.String()},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			session := &mock.DiscordSessionMock{
				GuildBanCreateWithReasonFunc: func(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error {
					return tc.err
				},
			}
			err := discord.NewPlatform(session).BanMember(t.Context(), "g1", "u1", "spam", 1)
			gt.Error(t, err)
			gt.A(t, goerr.Tags(err)).Has(tc.tag)
			gt.True(t, goerr.HasTag(err, errs.TagDiscordError))
		})
	}
}

func TestPlatformBanClampsDays(t *testing.T) {
	var gotDays int
	session := &mock.DiscordSessionMock{
		GuildBanCreateWithReasonFunc: func(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error {
			gotDays = days
			return nil
		},
	}
	gt.NoError(t, discord.NewPlatform(session).BanMember(t.Context(), "g1", "u1", "spam", 30))
	gt.Equal(t, gotDays, 7)
}

func TestPlatformTimeoutMember(t *testing.T) {
	until := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var got *time.Time
	session := &mock.DiscordSessionMock{
		GuildMemberTimeoutFunc: func(guildID string, userID string, u *time.Time, options ...discordgo.RequestOption) error {
			got = u
			return nil
		},
	}
	gt.NoError(t, discord.NewPlatform(session).TimeoutMember(t.Context(), "g1", "u1", until, "spam"))
	gt.True(t, got.Equal(until))
}

func TestPlatformRaiseVerificationLevel(t *testing.T) {
	t.Run("one level up", func(t *testing.T) {
		var edited *discordgo.VerificationLevel
		session := &mock.DiscordSessionMock{
			GuildFunc: func(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error) {
				return &discordgo.Guild{ID: guildID, VerificationLevel: discordgo.VerificationLevelLow}, nil
			},
			GuildEditFunc: func(guildID string, g *discordgo.GuildParams, options ...discordgo.RequestOption) (*discordgo.Guild, error) {
				edited = g.VerificationLevel
				return &discordgo.Guild{ID: guildID}, nil
			},
		}
		gt.NoError(t, discord.NewPlatform(session).RaiseVerificationLevel(t.Context(), "g1"))
		gt.NotNil(t, edited)
		gt.Equal(t, *edited, discordgo.VerificationLevelMedium)
	})

	t.Run("already highest", func(t *testing.T) {
		session := &mock.DiscordSessionMock{
			GuildFunc: func(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error) {
				return &discordgo.Guild{ID: guildID, VerificationLevel: discordgo.VerificationLevelVeryHigh}, nil
			},
		}
		gt.NoError(t, discord.NewPlatform(session).RaiseVerificationLevel(t.Context(), "g1"))
		gt.Equal(t, session.Calls("GuildEdit"), 0)
	})
}
