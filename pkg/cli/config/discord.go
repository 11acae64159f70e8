package config

import (
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

type Discord struct {
	token           string
	alertChannelID  string
	timeoutDuration time.Duration
	banDeleteDays   int
	alertRetention  time.Duration
}

func (x *Discord) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "discord-token",
			Usage:       "Discord bot token",
			Category:    "Discord",
			Sources:     cli.EnvVars("BASTION_DISCORD_TOKEN"),
			Destination: &x.token,
		},
		&cli.StringFlag{
			Name:        "discord-alert-channel-id",
			Usage:       "Discord channel ID where moderator alerts are posted",
			Category:    "Discord",
			Sources:     cli.EnvVars("BASTION_DISCORD_ALERT_CHANNEL_ID"),
			Destination: &x.alertChannelID,
		},
		&cli.DurationFlag{
			Name:        "discord-timeout-duration",
			Usage:       "How long the timeout action mutes a member",
			Category:    "Discord",
			Sources:     cli.EnvVars("BASTION_DISCORD_TIMEOUT_DURATION"),
			Value:       time.Hour,
			Destination: &x.timeoutDuration,
		},
		&cli.IntFlag{
			Name:        "discord-ban-delete-days",
			Usage:       "Days of messages removed together with a ban (0-7)",
			Category:    "Discord",
			Sources:     cli.EnvVars("BASTION_DISCORD_BAN_DELETE_DAYS"),
			Value:       1,
			Destination: &x.banDeleteDays,
		},
		&cli.DurationFlag{
			Name:        "alert-retention",
			Usage:       "How long raised alerts accept analyst actions without a repository lookup",
			Category:    "Discord",
			Sources:     cli.EnvVars("BASTION_ALERT_RETENTION"),
			Value:       24 * time.Hour,
			Destination: &x.alertRetention,
		},
	}
}

func (x Discord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("token.len", len(x.token)),
		slog.String("alert_channel_id", x.alertChannelID),
		slog.Duration("timeout_duration", x.timeoutDuration),
		slog.Int("ban_delete_days", x.banDeleteDays),
		slog.Duration("alert_retention", x.alertRetention),
	)
}

func (x *Discord) AlertChannelID() string         { return x.alertChannelID }
func (x *Discord) TimeoutDuration() time.Duration { return x.timeoutDuration }
func (x *Discord) BanDeleteDays() int             { return x.banDeleteDays }
func (x *Discord) AlertRetention() time.Duration  { return x.alertRetention }

// Configure creates the gateway session with the given intents. The session
// is not opened.
func (x *Discord) Configure(intents discordgo.Intent) (*discordgo.Session, error) {
	if x.token == "" {
		return nil, goerr.New("discord token is not set")
	}
	if x.banDeleteDays < 0 || x.banDeleteDays > 7 {
		return nil, goerr.New("discord ban delete days must be between 0 and 7", goerr.V("days", x.banDeleteDays))
	}

	session, err := discordgo.New("Bot " + x.token)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create discord session")
	}
	session.Identify.Intents = intents
	return session, nil
}
