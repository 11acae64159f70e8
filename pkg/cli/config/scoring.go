package config

import (
	"log/slog"

	"github.com/secmon-lab/bastion/pkg/service/scoring"
	"github.com/urfave/cli/v3"
)

type Scoring struct {
	patternsPath string
	autoDelete   bool
}

func (x *Scoring) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "scoring-patterns",
			Usage:       "YAML file replacing the built-in keyword and shortener lists",
			Category:    "Scoring",
			Sources:     cli.EnvVars("BASTION_SCORING_PATTERNS"),
			Destination: &x.patternsPath,
		},
		&cli.BoolFlag{
			Name:        "auto-delete",
			Usage:       "Delete messages scoring above the block threshold without waiting for a moderator",
			Category:    "Scoring",
			Sources:     cli.EnvVars("BASTION_AUTO_DELETE"),
			Destination: &x.autoDelete,
		},
	}
}

func (x Scoring) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("patterns", x.patternsPath),
		slog.Bool("auto_delete", x.autoDelete),
	)
}

func (x *Scoring) AutoDelete() bool { return x.autoDelete }

func (x *Scoring) Patterns() (scoring.Patterns, error) {
	return scoring.LoadPatterns(x.patternsPath)
}
