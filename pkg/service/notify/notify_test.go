package notify_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/bastion/pkg/domain/mock"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/model/raid"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/service/notify"
)

func sink(name string, fail bool) *mock.AlertNotifierMock {
	return &mock.AlertNotifierMock{
		NameFunc: func() string { return name },
		NotifyAlertFunc: func(ctx context.Context, alert *incident.Alert) (*incident.NotificationRef, error) {
			if fail {
				return nil, goerr.New("down", goerr.T(errs.TagExternal))
			}
			return &incident.NotificationRef{Sink: name, ChannelID: "ch", MessageID: name + "-1"}, nil
		},
		NotifyResolutionFunc: func(ctx context.Context, alert *incident.Alert, ref incident.NotificationRef, outcome incident.Outcome) error {
			return nil
		},
		NotifyMitigationFunc: func(ctx context.Context, report raid.Report) error {
			if fail {
				return goerr.New("down")
			}
			return nil
		},
	}
}

func TestNotifyAlertFirstSuccessfulRef(t *testing.T) {
	a, b := sink("discord", true), sink("slack", false)
	m := notify.New(a, nil, b)
	gt.Equal(t, m.Len(), 2)
	gt.Equal(t, m.Name(), "discord+slack")

	ref, err := m.NotifyAlert(t.Context(), &incident.Alert{ID: types.NewAlertID()})
	gt.NoError(t, err)
	gt.Equal(t, ref.Sink, "slack")
	gt.A(t, a.Alerts()).Length(1)
	gt.A(t, b.Alerts()).Length(1)
}

func TestNotifyAlertAllFail(t *testing.T) {
	m := notify.New(sink("discord", true), sink("slack", true))
	_, err := m.NotifyAlert(t.Context(), &incident.Alert{ID: types.NewAlertID()})
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, errs.TagExternal))
}

func TestNotifyResolutionRoutesBySink(t *testing.T) {
	a, b := sink("discord", false), sink("slack", false)
	m := notify.New(a, b)

	alert := &incident.Alert{ID: types.NewAlertID()}
	ref := incident.NotificationRef{Sink: "slack", ChannelID: "ch", MessageID: "slack-1"}
	gt.NoError(t, m.NotifyResolution(t.Context(), alert, ref, incident.Outcome{AlertID: alert.ID}))
	gt.A(t, a.Resolutions()).Length(0)
	gt.A(t, b.Resolutions()).Length(1)

	err := m.NotifyResolution(t.Context(), alert, incident.NotificationRef{Sink: "email"}, incident.Outcome{})
	gt.True(t, goerr.HasTag(err, errs.TagNotFound))
}

func TestNotifyMitigationKeepsGoing(t *testing.T) {
	a, b := sink("discord", true), sink("slack", false)
	err := notify.New(a, b).NotifyMitigation(t.Context(), raid.Report{CommunityID: "g1"})
	gt.Error(t, err)
	gt.A(t, b.Reports()).Length(1)
}
