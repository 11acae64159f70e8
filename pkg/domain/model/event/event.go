// Package event holds the narrow structs decoded from hosting platform events.
// Each carries only the fields the detection pipeline consumes.
package event

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/types"
)

type Attachment struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	// SHA256 is set when the platform supplies a content hash.
	SHA256 string `json:"sha256,omitempty"`
}

type Message struct {
	ID          types.MessageID   `json:"id"`
	CommunityID types.CommunityID `json:"community_id"`
	ChannelID   types.ChannelID   `json:"channel_id"`
	AuthorID    types.UserID      `json:"author_id"`
	AuthorName  string            `json:"author_name"`
	AuthorIsBot bool              `json:"author_is_bot"`
	Content     string            `json:"content"`
	Attachments []Attachment      `json:"attachments,omitempty"`
	MentionsBot bool              `json:"mentions_bot"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (x Message) Validate() error {
	switch {
	case x.ID == "":
		return goerr.New("message id is empty", goerr.T(errs.TagInvalidRequest))
	case x.ChannelID == "":
		return goerr.New("channel id is empty", goerr.T(errs.TagInvalidRequest), goerr.TV(errs.MessageIDKey, x.ID))
	case x.AuthorID == "":
		return goerr.New("author id is empty", goerr.T(errs.TagInvalidRequest), goerr.TV(errs.MessageIDKey, x.ID))
	}
	return nil
}

// IsDirect reports whether the message was sent outside any community.
func (x Message) IsDirect() bool {
	return x.CommunityID == ""
}

type MemberJoin struct {
	CommunityID      types.CommunityID `json:"community_id"`
	UserID           types.UserID      `json:"user_id"`
	Username         string            `json:"username"`
	IsBot            bool              `json:"is_bot"`
	AccountCreatedAt time.Time         `json:"account_created_at"`
	JoinedAt         time.Time         `json:"joined_at"`
}

func (x MemberJoin) Validate() error {
	if x.CommunityID == "" || x.UserID == "" {
		return goerr.New("member join lacks community or user id",
			goerr.T(errs.TagInvalidRequest),
			goerr.TV(errs.CommunityIDKey, x.CommunityID),
			goerr.TV(errs.UserIDKey, x.UserID))
	}
	return nil
}

// AuditAction is the normalised moderation log action.
type AuditAction string

const (
	AuditMemberBan     AuditAction = "member_ban"
	AuditMemberKick    AuditAction = "member_kick"
	AuditChannelDelete AuditAction = "channel_delete"
	AuditRoleDelete    AuditAction = "role_delete"
	AuditWebhookCreate AuditAction = "webhook_create"
	AuditOther         AuditAction = "other"
)

// Destructive reports whether the action counts toward mass moderation
// detection.
func (x AuditAction) Destructive() bool {
	switch x {
	case AuditMemberBan, AuditMemberKick, AuditChannelDelete, AuditRoleDelete, AuditWebhookCreate:
		return true
	}
	return false
}

type AuditLogEntry struct {
	ID          string            `json:"id"`
	CommunityID types.CommunityID `json:"community_id"`
	ActorID     types.UserID      `json:"actor_id"`
	TargetID    string            `json:"target_id"`
	Action      AuditAction       `json:"action"`
	Reason      string            `json:"reason,omitempty"`
}

func (x AuditLogEntry) Validate() error {
	if x.CommunityID == "" || x.ActorID == "" {
		return goerr.New("audit log entry lacks community or actor id",
			goerr.T(errs.TagInvalidRequest),
			goerr.V("entry_id", x.ID))
	}
	return nil
}

// ButtonSource tells which channel an analyst pressed a button in.
type ButtonSource string

const (
	ButtonSourceDiscord ButtonSource = "discord"
	ButtonSourceSlack   ButtonSource = "slack"
)

// ButtonClick is an analyst action routed back to an alert.
type ButtonClick struct {
	Source    ButtonSource        `json:"source"`
	AlertID   types.AlertID       `json:"alert_id"`
	Action    types.AnalystAction `json:"action"`
	AnalystID string              `json:"analyst_id"`
	// ChannelID and MessageID locate the alert message itself, when known.
	ChannelID string `json:"channel_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

func (x ButtonClick) Validate() error {
	if x.AlertID == "" || x.AnalystID == "" {
		return goerr.New("button click lacks alert or analyst id",
			goerr.T(errs.TagInvalidRequest),
			goerr.V("source", x.Source))
	}
	if err := x.Action.Validate(); err != nil {
		return goerr.Wrap(err, "invalid button action", goerr.T(errs.TagInvalidRequest))
	}
	return nil
}
