package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/model/raid"
)

// Multi sends notifications to every configured sink. One failing sink does
// not stop delivery to the others.
type Multi struct {
	notifiers []interfaces.AlertNotifier
}

var _ interfaces.AlertNotifier = &Multi{}

func New(notifiers ...interfaces.AlertNotifier) *Multi {
	var active []interfaces.AlertNotifier
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &Multi{notifiers: active}
}

func (m *Multi) Notifiers() []interfaces.AlertNotifier { return m.notifiers }

func (m *Multi) Len() int { return len(m.notifiers) }

func (m *Multi) Name() string {
	names := make([]string, 0, len(m.notifiers))
	for _, n := range m.notifiers {
		names = append(names, n.Name())
	}
	return strings.Join(names, "+")
}

// NotifyAlert posts to all sinks and returns the reference of the first sink
// that accepted the alert.
func (m *Multi) NotifyAlert(ctx context.Context, alert *incident.Alert) (*incident.NotificationRef, error) {
	var first *incident.NotificationRef
	var errList []error

	for _, n := range m.notifiers {
		ref, err := n.NotifyAlert(ctx, alert)
		if err != nil {
			errList = append(errList, err)
			continue
		}
		if first == nil {
			first = ref
		}
	}

	if first == nil && len(errList) > 0 {
		return nil, goerr.Wrap(errors.Join(errList...), "failed to notify alert via every notifier",
			goerr.TV(errs.AlertIDKey, alert.ID),
			goerr.V("total_errors", len(errList)))
	}
	return first, nil
}

// NotifyResolution updates the message on the sink that posted it.
func (m *Multi) NotifyResolution(ctx context.Context, alert *incident.Alert, ref incident.NotificationRef, outcome incident.Outcome) error {
	for _, n := range m.notifiers {
		if n.Name() == ref.Sink {
			return n.NotifyResolution(ctx, alert, ref, outcome)
		}
	}
	return goerr.New("no notifier for sink", goerr.T(errs.TagNotFound),
		goerr.TV(errs.AlertIDKey, alert.ID),
		goerr.V("sink", ref.Sink))
}

func (m *Multi) NotifyMitigation(ctx context.Context, report raid.Report) error {
	var errList []error
	for _, n := range m.notifiers {
		if err := n.NotifyMitigation(ctx, report); err != nil {
			errList = append(errList, err)
		}
	}

	if len(errList) > 0 {
		return goerr.Wrap(errors.Join(errList...), "failed to send mitigation report via one or more notifiers",
			goerr.TV(errs.CommunityIDKey, report.CommunityID),
			goerr.V("total_errors", len(errList)))
	}
	return nil
}
