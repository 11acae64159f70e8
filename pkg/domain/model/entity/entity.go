package entity

import (
	"time"

	"github.com/secmon-lab/bastion/pkg/domain/types"
)

type Kind string

const (
	KindCommunity Kind = "community"
	KindMember    Kind = "member"
	KindChannel   Kind = "channel"
)

func (x Kind) String() string { return string(x) }

// Entity is a persisted community, member or channel. Key is the platform ID;
// for members it is "<community>/<user>".
type Entity struct {
	ID        types.EntityID    `json:"id" firestore:"id"`
	Kind      Kind              `json:"kind" firestore:"kind"`
	Key       string            `json:"key" firestore:"key"`
	Attrs     map[string]string `json:"attrs,omitempty" firestore:"attrs"`
	CreatedAt time.Time         `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" firestore:"updated_at"`
}

func MemberKey(communityID types.CommunityID, userID types.UserID) string {
	return communityID.String() + "/" + userID.String()
}
