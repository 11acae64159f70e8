package config

import (
	"log/slog"
	"net/http"

	"github.com/secmon-lab/bastion/pkg/adapter/discord"
	"github.com/secmon-lab/bastion/pkg/adapter/safebrowsing"
	"github.com/secmon-lab/bastion/pkg/adapter/virustotal"
	"github.com/secmon-lab/bastion/pkg/service/scoring"
	"github.com/urfave/cli/v3"
)

type Reputation struct {
	safeBrowsingKey string
	virusTotalKey   string
	maxDownload     int64
}

func (x *Reputation) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "safebrowsing-api-key",
			Usage:       "Google Safe Browsing API key for URL reputation",
			Category:    "Reputation",
			Sources:     cli.EnvVars("BASTION_SAFEBROWSING_API_KEY"),
			Destination: &x.safeBrowsingKey,
		},
		&cli.StringFlag{
			Name:        "virustotal-api-key",
			Usage:       "VirusTotal API key for attachment reputation",
			Category:    "Reputation",
			Sources:     cli.EnvVars("BASTION_VIRUSTOTAL_API_KEY"),
			Destination: &x.virusTotalKey,
		},
		&cli.Int64Flag{
			Name:        "attachment-max-download",
			Usage:       "Largest attachment in bytes downloaded for hashing",
			Category:    "Reputation",
			Sources:     cli.EnvVars("BASTION_ATTACHMENT_MAX_DOWNLOAD"),
			Value:       8 << 20,
			Destination: &x.maxDownload,
		},
	}
}

func (x Reputation) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("safebrowsing-api-key.len", len(x.safeBrowsingKey)),
		slog.Int("virustotal-api-key.len", len(x.virusTotalKey)),
		slog.Int64("attachment_max_download", x.maxDownload),
	)
}

// EngineOptions wires the configured reputation clients into the scoring
// engine, each behind its own policy.
func (x *Reputation) EngineOptions(res *Resilience, httpClient *http.Client) []scoring.Option {
	var opts []scoring.Option
	if x.safeBrowsingKey != "" {
		client := safebrowsing.New(x.safeBrowsingKey, safebrowsing.WithHTTPClient(httpClient))
		opts = append(opts, scoring.WithURLReputation(client, res.Policy("safebrowsing")))
	}
	if x.virusTotalKey != "" {
		client := virustotal.New(x.virusTotalKey, virustotal.WithHTTPClient(httpClient))
		opts = append(opts,
			scoring.WithFileReputation(client, res.Policy("virustotal")),
			scoring.WithDownloader(discord.NewDownloader(httpClient), x.maxDownload),
		)
	}
	return opts
}
