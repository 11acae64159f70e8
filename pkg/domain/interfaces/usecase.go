package interfaces

import (
	"context"

	"github.com/secmon-lab/bastion/pkg/domain/model/event"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
)

// EventUsecases handles inbound platform events. Controllers decode platform
// payloads into event structs and hand them here.
type EventUsecases interface {
	HandleMessage(ctx context.Context, msg event.Message) error
	HandleMemberJoin(ctx context.Context, join event.MemberJoin) error
	HandleAuditLogEntry(ctx context.Context, entry event.AuditLogEntry) error
	HandleAlertAction(ctx context.Context, click event.ButtonClick) incident.Outcome
}
