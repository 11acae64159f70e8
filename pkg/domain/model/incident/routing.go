package incident

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/types"
)

const (
	discordCustomIDPrefix = "bastion"
	slackActionIDPrefix   = "incident_"
)

// DiscordCustomID is the button custom_id routing a click to an alert.
func DiscordCustomID(action types.AnalystAction, id types.AlertID) string {
	return discordCustomIDPrefix + ":" + action.String() + ":" + id.String()
}

// ParseDiscordCustomID is the inverse of DiscordCustomID.
func ParseDiscordCustomID(customID string) (types.AnalystAction, types.AlertID, error) {
	parts := strings.SplitN(customID, ":", 3)
	if len(parts) != 3 || parts[0] != discordCustomIDPrefix {
		return "", "", goerr.New("unknown custom id", goerr.T(errs.TagInvalidRequest), goerr.V("custom_id", customID))
	}

	action := types.AnalystAction(parts[1])
	if err := action.Validate(); err != nil {
		return "", "", goerr.Wrap(err, "invalid action in custom id", goerr.T(errs.TagInvalidRequest))
	}
	id := types.AlertID(parts[2])
	if err := id.Validate(); err != nil {
		return "", "", goerr.Wrap(err, "invalid alert id in custom id", goerr.T(errs.TagInvalidRequest))
	}
	return action, id, nil
}

// SlackActionID is the block kit action_id; the alert ID travels as the
// button value.
func SlackActionID(action types.AnalystAction) string {
	return slackActionIDPrefix + action.String()
}

func ParseSlackActionID(actionID string) (types.AnalystAction, error) {
	if !strings.HasPrefix(actionID, slackActionIDPrefix) {
		return "", goerr.New("unknown action id", goerr.T(errs.TagInvalidRequest), goerr.V("action_id", actionID))
	}
	action := types.AnalystAction(strings.TrimPrefix(actionID, slackActionIDPrefix))
	if err := action.Validate(); err != nil {
		return "", goerr.Wrap(err, "invalid action in action id", goerr.T(errs.TagInvalidRequest))
	}
	return action, nil
}
