package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/cli/config"
	"github.com/secmon-lab/bastion/pkg/domain/model/event"
	"github.com/secmon-lab/bastion/pkg/service/scoring"
	"github.com/urfave/cli/v3"
)

func cmdAnalyze() *cli.Command {
	var (
		text          string
		hashes        []string
		reputationCfg config.Reputation
		resilienceCfg config.Resilience
		scoringCfg    config.Scoring
	)

	flags := joinFlags(
		[]cli.Flag{
			&cli.StringFlag{
				Name:        "text",
				Aliases:     []string{"t"},
				Usage:       "Message text to analyze",
				Destination: &text,
			},
			&cli.StringSliceFlag{
				Name:        "attachment-hash",
				Usage:       "SHA-256 of an attachment to look up (repeatable)",
				Destination: &hashes,
			},
		},
		reputationCfg.Flags(),
		resilienceCfg.Flags(),
		scoringCfg.Flags(),
	)

	return &cli.Command{
		Name:  "analyze",
		Usage: "Score a message with the configured reputation sources and print the analysis as JSON",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			patterns, err := scoringCfg.Patterns()
			if err != nil {
				return err
			}
			httpClient := &http.Client{Timeout: externalHTTPTimeout}
			engine := scoring.New(append(
				reputationCfg.EngineOptions(&resilienceCfg, httpClient),
				scoring.WithPatterns(patterns),
			)...)
			return runAnalyze(ctx, c.Root().Writer, engine, text, hashes)
		},
	}
}

func runAnalyze(ctx context.Context, w io.Writer, engine *scoring.Engine, text string, hashes []string) error {
	if text == "" && len(hashes) == 0 {
		return goerr.New("either --text or --attachment-hash is required")
	}

	attachments := make([]event.Attachment, 0, len(hashes))
	for _, h := range hashes {
		attachments = append(attachments, event.Attachment{Filename: h, SHA256: h})
	}

	analysis := engine.Analyze(ctx, text, attachments)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(analysis); err != nil {
		return goerr.Wrap(err, "failed to write analysis")
	}
	return nil
}
