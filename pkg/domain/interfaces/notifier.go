package interfaces

import (
	"context"

	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/model/raid"
)

// AlertNotifier posts alerts to an analyst-facing channel.
type AlertNotifier interface {
	Name() string
	// NotifyAlert posts the alert with one button per analyst action.
	NotifyAlert(ctx context.Context, alert *incident.Alert) (*incident.NotificationRef, error)
	// NotifyResolution replaces the buttons of a posted alert with the outcome.
	NotifyResolution(ctx context.Context, alert *incident.Alert, ref incident.NotificationRef, outcome incident.Outcome) error
	NotifyMitigation(ctx context.Context, report raid.Report) error
}
