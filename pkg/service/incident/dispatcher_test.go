package incident_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/bastion/pkg/adapter/counter"
	"github.com/secmon-lab/bastion/pkg/domain/mock"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/repository"
	svc "github.com/secmon-lab/bastion/pkg/service/incident"
	"github.com/secmon-lab/bastion/pkg/utils/clock"
)

func acceptingPlatform() *mock.PlatformMock {
	return &mock.PlatformMock{
		DeleteMessageFunc: func(ctx context.Context, channelID types.ChannelID, messageID types.MessageID) error {
			return nil
		},
		TimeoutMemberFunc: func(ctx context.Context, communityID types.CommunityID, userID types.UserID, until time.Time, reason string) error {
			return nil
		},
		BanMemberFunc: func(ctx context.Context, communityID types.CommunityID, userID types.UserID, reason string, deleteMessageDays int) error {
			return nil
		},
	}
}

func newAlert() *incident.Alert {
	return &incident.Alert{
		ID:            types.NewAlertID(),
		CommunityID:   "g1",
		ChannelID:     "c1",
		EventID:       "m1",
		SubjectUserID: "u1",
		ThreatType:    types.SignalURLReputation,
		Score:         95,
		Status:        types.AlertStatusOpen,
		CreatedAt:     time.Now(),
	}
}

func TestRaise(t *testing.T) {
	repo := repository.NewMemory()
	notifier := mock.NewAcceptingNotifier("mods")
	failing := &mock.AlertNotifierMock{
		NameFunc: func() string { return "broken" },
		NotifyAlertFunc: func(ctx context.Context, alert *incident.Alert) (*incident.NotificationRef, error) {
			return nil, goerr.New("unavailable")
		},
	}
	d := svc.New(acceptingPlatform(), svc.WithRepository(repo), svc.WithNotifiers(notifier, failing))

	alert := newAlert()
	gt.NoError(t, d.Raise(t.Context(), alert))
	gt.A(t, notifier.Alerts()).Length(1)

	stored, err := repo.GetAlert(t.Context(), alert.ID)
	gt.NoError(t, err)
	gt.A(t, stored.Notifications).Length(1)
	gt.Equal(t, stored.Notifications[0].Sink, "mock")

	t.Run("invalid alert", func(t *testing.T) {
		err := d.Raise(t.Context(), &incident.Alert{})
		gt.True(t, goerr.HasTag(err, errs.TagValidation))
	})
}

func TestRaiseResolvedWhilePosting(t *testing.T) {
	posting := make(chan struct{})
	release := make(chan struct{})
	var resolved []incident.NotificationRef
	var mu sync.Mutex
	notifier := &mock.AlertNotifierMock{
		NameFunc: func() string { return "mods" },
		NotifyAlertFunc: func(ctx context.Context, alert *incident.Alert) (*incident.NotificationRef, error) {
			close(posting)
			<-release
			return &incident.NotificationRef{Sink: "mods", ChannelID: "alerts", MessageID: "n1"}, nil
		},
		NotifyResolutionFunc: func(ctx context.Context, alert *incident.Alert, ref incident.NotificationRef, outcome incident.Outcome) error {
			mu.Lock()
			defer mu.Unlock()
			resolved = append(resolved, ref)
			return nil
		},
	}
	repo := repository.NewMemory()
	d := svc.New(acceptingPlatform(), svc.WithRepository(repo), svc.WithNotifiers(notifier))

	alert := newAlert()
	done := make(chan error)
	go func() { done <- d.Raise(t.Context(), alert) }()

	<-posting
	outcome := d.HandleAction(t.Context(), alert.ID, types.AnalystBan, "analyst-1")
	gt.True(t, outcome.Success)
	close(release)
	gt.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	gt.A(t, resolved).Length(1)
	gt.Equal(t, resolved[0].MessageID, "n1")

	stored, err := repo.GetAlert(t.Context(), alert.ID)
	gt.NoError(t, err)
	gt.True(t, stored.Resolved())
	gt.A(t, stored.Notifications).Length(1)
}

func TestHandleActionRemediation(t *testing.T) {
	testCases := map[types.AnalystAction]struct {
		calls   map[string]int
		message string
	}{
		types.AnalystBan:     {calls: map[string]int{"BanMember": 1}, message: "has been banned"},
		types.AnalystTimeout: {calls: map[string]int{"TimeoutMember": 1, "DeleteMessage": 1}, message: "timed out"},
		types.AnalystDelete:  {calls: map[string]int{"DeleteMessage": 1}, message: "deleted"},
		types.AnalystIgnore:  {calls: map[string]int{}, message: "false positive"},
	}

	for action, tc := range testCases {
		t.Run(action.String(), func(t *testing.T) {
			platform := acceptingPlatform()
			repo := repository.NewMemory()
			notifier := mock.NewAcceptingNotifier("mods")
			d := svc.New(platform, svc.WithRepository(repo), svc.WithNotifiers(notifier))

			alert := newAlert()
			gt.NoError(t, d.Raise(t.Context(), alert))

			outcome := d.HandleAction(t.Context(), alert.ID, action, "analyst-1")
			gt.True(t, outcome.Success)
			gt.False(t, outcome.AlreadyHandled)
			gt.True(t, strings.Contains(outcome.Message, tc.message))

			for name, n := range tc.calls {
				gt.Equal(t, platform.Calls(name), n)
			}
			total := 0
			for _, n := range tc.calls {
				total += n
			}
			gt.Equal(t, platform.TotalCalls(), total)

			stored, err := repo.GetAlert(t.Context(), alert.ID)
			gt.NoError(t, err)
			gt.True(t, stored.Resolved())
			gt.Equal(t, stored.Resolution.AnalystID, "analyst-1")
			outcomes, err := repo.ListOutcomes(t.Context(), alert.ID)
			gt.NoError(t, err)
			gt.A(t, outcomes).Length(1)
			gt.A(t, notifier.Resolutions()).Length(1)
		})
	}
}

func TestHandleActionTimeoutMessage(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := clock.Fixed(t.Context(), now)
	platform := acceptingPlatform()
	d := svc.New(platform, svc.WithTimeoutDuration(time.Hour))

	alert := newAlert()
	gt.NoError(t, d.Raise(ctx, alert))

	outcome := d.HandleAction(ctx, alert.ID, types.AnalystTimeout, "analyst-1")
	gt.True(t, outcome.Success)
	gt.True(t, strings.Contains(outcome.Message, "timed out for 1 hour (until 2026-03-01T13:00:00Z)"))
}

func TestHandleActionPermissionFailureStillResolves(t *testing.T) {
	platform := acceptingPlatform()
	platform.BanMemberFunc = func(ctx context.Context, communityID types.CommunityID, userID types.UserID, reason string, deleteMessageDays int) error {
		return goerr.New("missing permissions", goerr.T(errs.TagForbidden))
	}
	repo := repository.NewMemory()
	d := svc.New(platform, svc.WithRepository(repo))

	alert := newAlert()
	gt.NoError(t, d.Raise(t.Context(), alert))

	outcome := d.HandleAction(t.Context(), alert.ID, types.AnalystBan, "analyst-1")
	gt.False(t, outcome.Success)
	gt.True(t, strings.Contains(outcome.Message, "permission"))

	stored, err := repo.GetAlert(t.Context(), alert.ID)
	gt.NoError(t, err)
	gt.True(t, stored.Resolved())
	gt.False(t, stored.Resolution.Success)
}

func TestHandleActionOnlyFirstApplies(t *testing.T) {
	platform := acceptingPlatform()
	d := svc.New(platform, svc.WithRepository(repository.NewMemory()))

	alert := newAlert()
	gt.NoError(t, d.Raise(t.Context(), alert))

	first := d.HandleAction(t.Context(), alert.ID, types.AnalystDelete, "analyst-1")
	gt.True(t, first.Success)

	second := d.HandleAction(t.Context(), alert.ID, types.AnalystBan, "analyst-2")
	gt.True(t, second.AlreadyHandled)
	gt.False(t, second.Success)
	gt.True(t, strings.Contains(second.Message, "already been handled"))
	gt.Equal(t, platform.Calls("BanMember"), 0)
	gt.Equal(t, platform.TotalCalls(), 1)
}

func TestHandleActionConcurrentClicks(t *testing.T) {
	platform := acceptingPlatform()
	d := svc.New(platform, svc.WithRepository(repository.NewMemory()))

	alert := newAlert()
	gt.NoError(t, d.Raise(t.Context(), alert))

	var wg sync.WaitGroup
	outcomes := make([]incident.Outcome, 10)
	for i := range outcomes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = d.HandleAction(t.Context(), alert.ID, types.AnalystBan, "analyst")
		}()
	}
	wg.Wait()

	applied := 0
	for _, o := range outcomes {
		if !o.AlreadyHandled {
			applied++
		}
	}
	gt.Equal(t, applied, 1)
	gt.Equal(t, platform.Calls("BanMember"), 1)
}

func TestHandleActionAcrossProcesses(t *testing.T) {
	store := counter.NewMemory()
	repo := repository.NewMemory()
	platform := acceptingPlatform()

	// two dispatchers sharing the store and repository stand in for two shards
	shard1 := svc.New(platform, svc.WithRepository(repo), svc.WithCounterStore(store))
	shard2 := svc.New(platform, svc.WithRepository(repo), svc.WithCounterStore(store))

	alert := newAlert()
	gt.NoError(t, shard1.Raise(t.Context(), alert))

	first := shard2.HandleAction(t.Context(), alert.ID, types.AnalystTimeout, "analyst-1")
	gt.True(t, first.Success)

	second := shard1.HandleAction(t.Context(), alert.ID, types.AnalystBan, "analyst-2")
	gt.True(t, second.AlreadyHandled)
	gt.Equal(t, platform.Calls("BanMember"), 0)
}

func TestHandleActionUnknown(t *testing.T) {
	d := svc.New(acceptingPlatform(), svc.WithRepository(repository.NewMemory()))

	outcome := d.HandleAction(t.Context(), types.NewAlertID(), types.AnalystBan, "analyst")
	gt.False(t, outcome.Success)
	gt.Equal(t, outcome.Message, "Alert not found or expired.")

	outcome = d.HandleAction(t.Context(), types.NewAlertID(), types.AnalystAction("nuke"), "analyst")
	gt.False(t, outcome.Success)
	gt.Equal(t, outcome.Message, "Unknown action.")

	outcome = d.HandleAction(t.Context(), "not-an-id", types.AnalystBan, "analyst")
	gt.Equal(t, outcome.Message, "Unknown alert.")
}
