package repository_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/entity"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/repository"
	"github.com/secmon-lab/bastion/pkg/utils/test"
)

func newFirestoreClient(t *testing.T) *repository.Firestore {
	vars := test.NewEnvVars(t, "TEST_FIRESTORE_PROJECT_ID", "TEST_FIRESTORE_DATABASE_ID")
	client, err := repository.NewFirestore(t.Context(),
		vars.Get("TEST_FIRESTORE_PROJECT_ID"),
		vars.Get("TEST_FIRESTORE_DATABASE_ID"),
	)
	gt.NoError(t, err).Required()
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testRepositories(t *testing.T, testFn func(t *testing.T, repo interfaces.Repository)) {
	t.Run("memory", func(t *testing.T) {
		testFn(t, repository.NewMemory())
	})
	t.Run("firestore", func(t *testing.T) {
		testFn(t, newFirestoreClient(t))
	})
}

// Firestore data is shared between runs, so every test uses fresh IDs.
func uniq(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

func newTestAlert(community types.CommunityID, subject types.UserID) *incident.Alert {
	return &incident.Alert{
		ID:            types.NewAlertID(),
		CommunityID:   community,
		ChannelID:     "c1",
		EventID:       "m1",
		SubjectUserID: subject,
		ThreatType:    types.SignalURLReputation,
		Score:         95,
		Indicators:    []string{"https://evil.example"},
		Description:   "test alert",
		Status:        types.AlertStatusOpen,
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
		Notifications: []incident.NotificationRef{{Sink: "discord", ChannelID: "mods", MessageID: "posted"}},
	}
}

func TestGetOrCreateEntity(t *testing.T) {
	testRepositories(t, func(t *testing.T, repo interfaces.Repository) {
		community := types.CommunityID(uniq("g"))
		key := entity.MemberKey(community, "u1")

		first, err := repo.GetOrCreateEntity(t.Context(), entity.KindMember, key, map[string]string{"name": "alice"})
		gt.NoError(t, err)
		gt.Equal(t, first.Key, key)
		gt.Equal(t, first.Attrs["name"], "alice")

		second, err := repo.GetOrCreateEntity(t.Context(), entity.KindMember, key, map[string]string{"name": "changed"})
		gt.NoError(t, err)
		gt.Equal(t, second.ID, first.ID)
		gt.Equal(t, second.Attrs["name"], "alice")

		other, err := repo.GetOrCreateEntity(t.Context(), entity.KindCommunity, key, nil)
		gt.NoError(t, err)
		gt.NotEqual(t, other.ID, first.ID)

		_, err = repo.GetOrCreateEntity(t.Context(), entity.KindMember, "", nil)
		gt.Error(t, err)
	})
}

func TestAlertLifecycle(t *testing.T) {
	testRepositories(t, func(t *testing.T, repo interfaces.Repository) {
		community := types.CommunityID(uniq("g"))
		alert := newTestAlert(community, "u1")

		missing, err := repo.GetAlert(t.Context(), types.NewAlertID())
		gt.NoError(t, err)
		gt.Nil(t, missing)

		gt.NoError(t, repo.PutAlert(t.Context(), alert))
		got, err := repo.GetAlert(t.Context(), alert.ID)
		gt.NoError(t, err)
		gt.NotNil(t, got)
		gt.Equal(t, got.Score, 95)
		gt.Equal(t, got.Status, types.AlertStatusOpen)
		gt.A(t, got.Notifications).Length(1)

		count, err := repo.CountActive(t.Context(), types.SignalURLReputation, "u1", community)
		gt.NoError(t, err)
		gt.Equal(t, count, 1)

		outcome := incident.Outcome{
			AlertID:    alert.ID,
			Action:     types.AnalystDelete,
			AnalystID:  "analyst",
			Success:    true,
			Message:    "The message has been deleted.",
			ExecutedAt: time.Now().UTC(),
		}
		alert.Resolve(outcome)
		gt.NoError(t, repo.PutAlert(t.Context(), alert))
		gt.NoError(t, repo.RecordOutcome(t.Context(), outcome))

		outcomes, err := repo.ListOutcomes(t.Context(), alert.ID)
		gt.NoError(t, err)
		gt.A(t, outcomes).Length(1)
		gt.Equal(t, outcomes[0].AnalystID, "analyst")

		got, err = repo.GetAlert(t.Context(), alert.ID)
		gt.NoError(t, err)
		gt.True(t, got.Resolved())
		gt.Equal(t, got.Resolution.Action, types.AnalystDelete)

		count, err = repo.CountActive(t.Context(), types.SignalURLReputation, "u1", community)
		gt.NoError(t, err)
		gt.Equal(t, count, 0)
	})
}

func TestCountActiveFilters(t *testing.T) {
	testRepositories(t, func(t *testing.T, repo interfaces.Repository) {
		community := types.CommunityID(uniq("g"))

		gt.NoError(t, repo.PutAlert(t.Context(), newTestAlert(community, "u1")))
		gt.NoError(t, repo.PutAlert(t.Context(), newTestAlert(community, "u1")))
		gt.NoError(t, repo.PutAlert(t.Context(), newTestAlert(community, "u2")))
		other := newTestAlert(community, "u1")
		other.ThreatType = types.SignalNewAccount
		gt.NoError(t, repo.PutAlert(t.Context(), other))

		count, err := repo.CountActive(t.Context(), types.SignalURLReputation, "u1", community)
		gt.NoError(t, err)
		gt.Equal(t, count, 2)

		count, err = repo.CountActive(t.Context(), types.SignalURLReputation, "u1", types.CommunityID(uniq("g")))
		gt.NoError(t, err)
		gt.Equal(t, count, 0)
	})
}

func TestMemoryOutcomes(t *testing.T) {
	repo := repository.NewMemory()
	id := types.NewAlertID()
	gt.NoError(t, repo.RecordOutcome(t.Context(), incident.Outcome{AlertID: id, Action: types.AnalystIgnore, Success: true}))
	outcomes, err := repo.ListOutcomes(t.Context(), id)
	gt.NoError(t, err)
	gt.A(t, outcomes).Length(1)
	gt.Equal(t, repo.GetCallCount("RecordOutcome"), 1)

	none, err := repo.ListOutcomes(t.Context(), types.NewAlertID())
	gt.NoError(t, err)
	gt.A(t, none).Length(0)
}
