package config

import (
	"context"
	"log/slog"

	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/repository"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Firestore struct {
	projectID  string
	databaseID string
}

func (c *Firestore) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore project ID. In-memory storage is used when empty",
			Destination: &c.projectID,
			Category:    "Firestore",
			Sources:     cli.EnvVars("BASTION_FIRESTORE_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore database ID",
			Destination: &c.databaseID,
			Category:    "Firestore",
			Sources:     cli.EnvVars("BASTION_FIRESTORE_DATABASE_ID"),
			Value:       "(default)",
		},
	}
}

func (c Firestore) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("project_id", c.projectID),
		slog.String("database_id", c.databaseID),
	)
}

func (c *Firestore) IsConfigured() bool {
	return c.projectID != ""
}

// Configure returns the Firestore repository, or the in-memory one when no
// project is set.
func (c *Firestore) Configure(ctx context.Context) (interfaces.Repository, error) {
	if !c.IsConfigured() {
		logging.From(ctx).Warn("Firestore is not configured, alerts and entities are kept in memory")
		return repository.NewMemory(), nil
	}
	return repository.NewFirestore(ctx, c.projectID, c.databaseID)
}
