package incident

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/utils/clock"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
)

// remediate runs the platform calls for action and describes the result.
// Platform failures end up in the message, never as errors.
func (x *Dispatcher) remediate(ctx context.Context, alert *incident.Alert, action types.AnalystAction) (bool, string) {
	reason := fmt.Sprintf("bastion alert %s: %s", alert.ID, alert.ThreatType)
	user := "<@" + alert.SubjectUserID.String() + ">"

	switch action {
	case types.AnalystIgnore:
		return true, "Alert marked as a false positive. No action was taken."

	case types.AnalystDelete:
		if err := x.deleteEvent(ctx, alert); err != nil {
			return false, failure(ctx, "delete the message", err)
		}
		return true, "The message has been deleted."

	case types.AnalystTimeout:
		now := clock.Now(ctx)
		until := now.Add(x.timeoutDuration)
		if err := x.platform.TimeoutMember(ctx, alert.CommunityID, alert.SubjectUserID, until, reason); err != nil {
			return false, failure(ctx, "time out "+user, err)
		}
		msg := fmt.Sprintf("%s has been timed out for %s (until %s).", user,
			strings.TrimSpace(humanize.RelTime(now, until, "", "")), until.UTC().Format(time.RFC3339))
		if err := x.deleteEvent(ctx, alert); err != nil {
			return true, msg + " " + failure(ctx, "delete the message", err)
		}
		return true, msg + " The message has been deleted."

	case types.AnalystBan:
		if err := x.platform.BanMember(ctx, alert.CommunityID, alert.SubjectUserID, reason, x.banDeleteDays); err != nil {
			return false, failure(ctx, "ban "+user, err)
		}
		return true, fmt.Sprintf("%s has been banned and their messages from the last %d day(s) deleted.", user, x.banDeleteDays)
	}

	return false, "Unknown action."
}

func (x *Dispatcher) deleteEvent(ctx context.Context, alert *incident.Alert) error {
	if alert.ChannelID == "" || alert.EventID == "" {
		return goerr.New("alert has no message to delete", goerr.T(errs.TagNotFound))
	}
	return x.platform.DeleteMessage(ctx, alert.ChannelID, alert.EventID)
}

func failure(ctx context.Context, what string, err error) string {
	logging.From(ctx).Warn("remediation failed", logging.ErrAttr(err), "remediation", what)
	switch {
	case goerr.HasTag(err, errs.TagForbidden):
		return fmt.Sprintf("Could not %s: the bot lacks the required permission.", what)
	case goerr.HasTag(err, errs.TagNotFound):
		return fmt.Sprintf("Could not %s: it no longer exists.", what)
	}
	return fmt.Sprintf("Could not %s: %s", what, err.Error())
}
