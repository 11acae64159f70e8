package types

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type AlertID string

func (x AlertID) String() string {
	return string(x)
}

func NewAlertID() AlertID {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return AlertID(id.String())
}

func (x AlertID) Validate() error {
	if x == EmptyAlertID {
		return goerr.New("empty alert ID")
	}
	if _, err := uuid.Parse(string(x)); err != nil {
		return goerr.Wrap(err, "invalid alert ID format", goerr.V("id", x))
	}
	return nil
}

const EmptyAlertID AlertID = ""

// CommunityID is the platform's server (guild) identifier.
type CommunityID string

func (x CommunityID) String() string { return string(x) }

type ChannelID string

func (x ChannelID) String() string { return string(x) }

type MessageID string

func (x MessageID) String() string { return string(x) }

type UserID string

func (x UserID) String() string { return string(x) }

type EntityID string

func (x EntityID) String() string { return string(x) }

func NewEntityID() EntityID {
	return EntityID(uuid.New().String())
}
