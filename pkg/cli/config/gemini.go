package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/urfave/cli/v3"
)

type GeminiCfg struct {
	model     string
	projectID string
	location  string
}

func (x *GeminiCfg) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model",
			Destination: &x.model,
			Category:    "Gemini",
			Sources:     cli.EnvVars("BASTION_GEMINI_MODEL"),
			Value:       "gemini-2.5-flash",
		},
		&cli.StringFlag{
			Name:        "gemini-project-id",
			Usage:       "GCP Project ID for Vertex AI. The assistant is disabled when empty",
			Destination: &x.projectID,
			Category:    "Gemini",
			Sources:     cli.EnvVars("BASTION_GEMINI_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "GCP Location for Vertex AI",
			Value:       "us-central1",
			Destination: &x.location,
			Category:    "Gemini",
			Sources:     cli.EnvVars("BASTION_GEMINI_LOCATION"),
		},
	}
}

func (x GeminiCfg) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("model", x.model),
		slog.String("project_id", x.projectID),
		slog.String("location", x.location),
	)
}

// Configure returns nil when no project is set.
func (x *GeminiCfg) Configure(ctx context.Context) (gollem.LLMClient, error) {
	if x.projectID == "" {
		return nil, nil
	}

	client, err := gemini.New(ctx, x.projectID, x.location, gemini.WithModel(x.model))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create vertex ai client")
	}
	return client, nil
}
