package errs

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/types"
)

var (
	AlertIDKey     = goerr.NewTypedKey[types.AlertID]("alert_id")
	CommunityIDKey = goerr.NewTypedKey[types.CommunityID]("community_id")
	ChannelIDKey   = goerr.NewTypedKey[types.ChannelID]("channel_id")
	MessageIDKey   = goerr.NewTypedKey[types.MessageID]("message_id")
	UserIDKey      = goerr.NewTypedKey[types.UserID]("user_id")

	RepositoryKey = goerr.NewTypedKey[string]("repository")
	ServiceKey    = goerr.NewTypedKey[string]("service")
	BreakerKey    = goerr.NewTypedKey[string]("breaker")
	HTTPStatusKey = goerr.NewTypedKey[int]("http_status")
	URLKey        = goerr.NewTypedKey[string]("url")
	DurationKey   = goerr.NewTypedKey[time.Duration]("duration")
)
