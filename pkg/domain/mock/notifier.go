package mock

import (
	"context"
	"sync"

	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/model/raid"
)

var _ interfaces.AlertNotifier = &AlertNotifierMock{}

type AlertNotifierMock struct {
	NameFunc             func() string
	NotifyAlertFunc      func(ctx context.Context, alert *incident.Alert) (*incident.NotificationRef, error)
	NotifyResolutionFunc func(ctx context.Context, alert *incident.Alert, ref incident.NotificationRef, outcome incident.Outcome) error
	NotifyMitigationFunc func(ctx context.Context, report raid.Report) error

	lock        sync.Mutex
	alerts      []*incident.Alert
	resolutions []incident.Outcome
	reports     []raid.Report
}

func (m *AlertNotifierMock) Name() string {
	if m.NameFunc == nil {
		return "mock"
	}
	return m.NameFunc()
}

func (m *AlertNotifierMock) NotifyAlert(ctx context.Context, alert *incident.Alert) (*incident.NotificationRef, error) {
	if m.NotifyAlertFunc == nil {
		panic("AlertNotifierMock.NotifyAlertFunc: method is nil but AlertNotifier.NotifyAlert was just called")
	}
	m.lock.Lock()
	m.alerts = append(m.alerts, alert)
	m.lock.Unlock()
	return m.NotifyAlertFunc(ctx, alert)
}

func (m *AlertNotifierMock) NotifyResolution(ctx context.Context, alert *incident.Alert, ref incident.NotificationRef, outcome incident.Outcome) error {
	if m.NotifyResolutionFunc == nil {
		panic("AlertNotifierMock.NotifyResolutionFunc: method is nil but AlertNotifier.NotifyResolution was just called")
	}
	m.lock.Lock()
	m.resolutions = append(m.resolutions, outcome)
	m.lock.Unlock()
	return m.NotifyResolutionFunc(ctx, alert, ref, outcome)
}

func (m *AlertNotifierMock) NotifyMitigation(ctx context.Context, report raid.Report) error {
	if m.NotifyMitigationFunc == nil {
		panic("AlertNotifierMock.NotifyMitigationFunc: method is nil but AlertNotifier.NotifyMitigation was just called")
	}
	m.lock.Lock()
	m.reports = append(m.reports, report)
	m.lock.Unlock()
	return m.NotifyMitigationFunc(ctx, report)
}

func (m *AlertNotifierMock) Alerts() []*incident.Alert {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]*incident.Alert(nil), m.alerts...)
}

func (m *AlertNotifierMock) Resolutions() []incident.Outcome {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]incident.Outcome(nil), m.resolutions...)
}

func (m *AlertNotifierMock) Reports() []raid.Report {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]raid.Report(nil), m.reports...)
}

// NewAcceptingNotifier returns a notifier mock that accepts every call and
// returns a ref pointing at channelID.
func NewAcceptingNotifier(channelID string) *AlertNotifierMock {
	return &AlertNotifierMock{
		NotifyAlertFunc: func(ctx context.Context, alert *incident.Alert) (*incident.NotificationRef, error) {
			return &incident.NotificationRef{Sink: "mock", ChannelID: channelID, MessageID: "msg-" + alert.ID.String()}, nil
		},
		NotifyResolutionFunc: func(ctx context.Context, alert *incident.Alert, ref incident.NotificationRef, outcome incident.Outcome) error {
			return nil
		},
		NotifyMitigationFunc: func(ctx context.Context, report raid.Report) error {
			return nil
		},
	}
}
