package config

import (
	"log/slog"

	server "github.com/secmon-lab/bastion/pkg/controller/http"
	"github.com/secmon-lab/bastion/pkg/service/slack"
	"github.com/urfave/cli/v3"

	sdk "github.com/slack-go/slack"
)

type Slack struct {
	oauthToken    string
	signingSecret string
	channelID     string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-oauth-token",
			Usage:       "Slack OAuth token",
			Category:    "Slack",
			Destination: &x.oauthToken,
			Sources:     cli.EnvVars("BASTION_SLACK_OAUTH_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-signing-secret",
			Usage:       "Slack signing secret",
			Category:    "Slack",
			Destination: &x.signingSecret,
			Sources:     cli.EnvVars("BASTION_SLACK_SIGNING_SECRET"),
		},
		&cli.StringFlag{
			Name:        "slack-channel-id",
			Usage:       "Slack channel ID where alerts are posted",
			Category:    "Slack",
			Destination: &x.channelID,
			Sources:     cli.EnvVars("BASTION_SLACK_CHANNEL_ID"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("oauth-token.len", len(x.oauthToken)),
		slog.Int("signing-secret.len", len(x.signingSecret)),
		slog.String("channel-id", x.channelID),
	)
}

// Configure returns nil when Slack is not set up.
func (x *Slack) Configure() *slack.Service {
	if x.oauthToken == "" || x.channelID == "" {
		return nil
	}
	return slack.New(sdk.New(x.oauthToken), x.channelID)
}

func (x *Slack) Verifier() server.PayloadVerifier {
	if x.signingSecret == "" {
		return nil
	}
	return server.NewPayloadVerifier(x.signingSecret)
}
