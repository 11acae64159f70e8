package incident

import (
	"time"

	"github.com/secmon-lab/bastion/pkg/domain/types"
)

// Outcome is the result of an analyst action. Message is always a sentence
// that can be shown to the analyst as is.
type Outcome struct {
	AlertID        types.AlertID       `json:"alert_id" firestore:"alert_id"`
	Action         types.AnalystAction `json:"action" firestore:"action"`
	AnalystID      string              `json:"analyst_id" firestore:"analyst_id"`
	Success        bool                `json:"success" firestore:"success"`
	AlreadyHandled bool                `json:"already_handled" firestore:"already_handled"`
	Message        string              `json:"message" firestore:"message"`
	ExecutedAt     time.Time           `json:"executed_at" firestore:"executed_at"`
}
