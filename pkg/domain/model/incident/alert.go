package incident

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/model/intel"
	"github.com/secmon-lab/bastion/pkg/domain/model/threat"
	"github.com/secmon-lab/bastion/pkg/domain/types"
)

// NotificationRef locates a message an alert was posted as, so the message
// can be updated once the alert is resolved.
type NotificationRef struct {
	Sink      string `json:"sink" firestore:"sink"`
	ChannelID string `json:"channel_id" firestore:"channel_id"`
	MessageID string `json:"message_id" firestore:"message_id"`
}

type Alert struct {
	ID            types.AlertID     `json:"id" firestore:"id"`
	CommunityID   types.CommunityID `json:"community_id" firestore:"community_id"`
	ChannelID     types.ChannelID   `json:"channel_id" firestore:"channel_id"`
	EventID       types.MessageID   `json:"event_id" firestore:"event_id"`
	SubjectUserID types.UserID      `json:"subject_user_id" firestore:"subject_user_id"`
	ThreatType    types.SignalKind  `json:"threat_type" firestore:"threat_type"`
	Score         int               `json:"score" firestore:"score"`
	Indicators    []string          `json:"indicators,omitempty" firestore:"indicators"`
	Description   string            `json:"description" firestore:"description"`
	Enrichment    *intel.Enrichment `json:"enrichment,omitempty" firestore:"enrichment"`
	Status        types.AlertStatus `json:"status" firestore:"status"`
	Notifications []NotificationRef `json:"notifications,omitempty" firestore:"notifications"`
	CreatedAt     time.Time         `json:"created_at" firestore:"created_at"`
	ResolvedAt    *time.Time        `json:"resolved_at,omitempty" firestore:"resolved_at"`
	Resolution    *Outcome          `json:"resolution,omitempty" firestore:"resolution"`
}

// NewAlert builds an open alert from an analysis. The threat type is taken
// from the highest scoring signal.
func NewAlert(analysis *threat.Analysis, communityID types.CommunityID, channelID types.ChannelID, eventID types.MessageID, subject types.UserID, now time.Time) *Alert {
	alert := &Alert{
		ID:            types.NewAlertID(),
		CommunityID:   communityID,
		ChannelID:     channelID,
		EventID:       eventID,
		SubjectUserID: subject,
		Status:        types.AlertStatusOpen,
		CreatedAt:     now,
	}
	if analysis == nil {
		return alert
	}

	alert.Score = analysis.AggregateScore
	alert.Indicators = analysis.IOCs.Values()
	if top, ok := analysis.TopSignal(); ok {
		alert.ThreatType = top.Kind
		alert.Description = top.Description
	}
	return alert
}

func (x *Alert) Validate() error {
	if err := x.ID.Validate(); err != nil {
		return err
	}
	if x.CommunityID == "" {
		return goerr.New("alert has no community", goerr.V("alert_id", x.ID))
	}
	return nil
}

func (x *Alert) Resolved() bool {
	return x.Status == types.AlertStatusResolved
}

// Resolve moves the alert to Resolved and attaches the outcome. It is the
// only transition an alert has.
func (x *Alert) Resolve(outcome Outcome) {
	x.Status = types.AlertStatusResolved
	at := outcome.ExecutedAt
	x.ResolvedAt = &at
	x.Resolution = &outcome
}

func (x *Alert) Title() string {
	return fmt.Sprintf("Threat detected: %s (score %d)", x.ThreatType, x.Score)
}

func (x *Alert) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", x.ID.String()),
		slog.String("community_id", x.CommunityID.String()),
		slog.String("subject", x.SubjectUserID.String()),
		slog.String("threat_type", x.ThreatType.String()),
		slog.Int("score", x.Score),
		slog.String("status", x.Status.String()),
	)
}
