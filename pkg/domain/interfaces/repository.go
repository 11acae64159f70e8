package interfaces

import (
	"context"

	"github.com/secmon-lab/bastion/pkg/domain/model/entity"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/types"
)

type Repository interface {
	GetOrCreateEntity(ctx context.Context, kind entity.Kind, key string, attrs map[string]string) (*entity.Entity, error)

	PutAlert(ctx context.Context, alert *incident.Alert) error
	// GetAlert returns nil without error when the alert does not exist.
	GetAlert(ctx context.Context, id types.AlertID) (*incident.Alert, error)
	RecordOutcome(ctx context.Context, outcome incident.Outcome) error
	// ListOutcomes returns the outcomes recorded for an alert, oldest first.
	ListOutcomes(ctx context.Context, id types.AlertID) ([]incident.Outcome, error)
	// CountActive counts open alerts of the given threat type about subject.
	CountActive(ctx context.Context, kind types.SignalKind, subject types.UserID, communityID types.CommunityID) (int, error)
}
