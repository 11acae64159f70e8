package usecase_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gollem"
	gollem_mock "github.com/m-mizutani/gollem/mock"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/bastion/pkg/adapter/counter"
	"github.com/secmon-lab/bastion/pkg/domain/mock"
	"github.com/secmon-lab/bastion/pkg/domain/model/event"
	"github.com/secmon-lab/bastion/pkg/domain/model/threat"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/repository"
	"github.com/secmon-lab/bastion/pkg/service/assist"
	"github.com/secmon-lab/bastion/pkg/service/auditwatch"
	"github.com/secmon-lab/bastion/pkg/service/incident"
	"github.com/secmon-lab/bastion/pkg/service/raid"
	"github.com/secmon-lab/bastion/pkg/service/resilience"
	"github.com/secmon-lab/bastion/pkg/service/scoring"
	"github.com/secmon-lab/bastion/pkg/usecase"
	"github.com/secmon-lab/bastion/pkg/utils/clock"
)

type fixture struct {
	platform *mock.PlatformMock
	notifier *mock.AlertNotifierMock
	repo     *repository.Memory
	store    *counter.Memory
	urlRep   *mock.URLReputationMock
	sent     []string
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		notifier: mock.NewAcceptingNotifier("mods"),
		repo:     repository.NewMemory(),
		store:    counter.NewMemory(),
		urlRep: &mock.URLReputationMock{
			CheckURLsFunc: func(ctx context.Context, urls []string) ([]threat.URLMatch, error) {
				var matches []threat.URLMatch
				for _, u := range urls {
					if strings.Contains(u, "evil.example") {
						matches = append(matches, threat.URLMatch{URL: u, ThreatType: "MALWARE"})
					}
				}
				return matches, nil
			},
		},
	}
	f.platform = &mock.PlatformMock{
		DeleteMessageFunc: func(ctx context.Context, channelID types.ChannelID, messageID types.MessageID) error {
			return nil
		},
		BanMemberFunc: func(ctx context.Context, communityID types.CommunityID, userID types.UserID, reason string, deleteMessageDays int) error {
			return nil
		},
		RemoveMemberFunc: func(ctx context.Context, communityID types.CommunityID, userID types.UserID, reason string) error {
			return nil
		},
		RaiseVerificationLevelFunc: func(ctx context.Context, communityID types.CommunityID) error {
			return nil
		},
		SendMessageFunc: func(ctx context.Context, channelID types.ChannelID, content string) error {
			f.sent = append(f.sent, content)
			return nil
		},
	}
	return f
}

func (f *fixture) useCases(t *testing.T, opts ...usecase.Option) *usecase.UseCases {
	policy := resilience.NewPolicy(t.Name(), resilience.PolicyConfig{
		Retry:   resilience.RetryConfig{MaxAttempts: 1},
		Breaker: resilience.DefaultBreakerConfig(),
		Timeout: time.Second,
	})
	dispatcher := incident.New(f.platform,
		incident.WithRepository(f.repo),
		incident.WithCounterStore(f.store),
		incident.WithNotifiers(f.notifier),
	)

	base := []usecase.Option{
		usecase.WithPlatform(f.platform),
		usecase.WithRepository(f.repo),
		usecase.WithScoringEngine(scoring.New(scoring.WithURLReputation(f.urlRep, policy))),
		usecase.WithDispatcher(dispatcher),
		usecase.WithRaidDetector(raid.New(f.store, f.platform, f.notifier, raid.Config{JoinThreshold: 3, Window: 10 * time.Second})),
		usecase.WithAuditWatcher(auditwatch.New(f.store, dispatcher, auditwatch.Config{Threshold: 3, Window: time.Minute})),
	}
	return usecase.New(append(base, opts...)...)
}

func message(content string) event.Message {
	return event.Message{
		ID:          types.MessageID("m-" + fmt.Sprint(time.Now().UnixNano())),
		CommunityID: "g1",
		ChannelID:   "c1",
		AuthorID:    "u1",
		AuthorName:  "mallory",
		Content:     content,
		CreatedAt:   time.Now(),
	}
}

func TestHandleMessageRaisesAlert(t *testing.T) {
	f := newFixture(t)
	uc := f.useCases(t)

	gt.NoError(t, uc.HandleMessage(t.Context(), message("grab it https://evil.example/payload")))

	alerts := f.notifier.Alerts()
	gt.A(t, alerts).Length(1)
	gt.Equal(t, alerts[0].ThreatType, types.SignalURLReputation)
	gt.Equal(t, alerts[0].SubjectUserID, types.UserID("u1"))
	gt.Equal(t, f.platform.Calls("DeleteMessage"), 0)

	stored, err := f.repo.GetAlert(t.Context(), alerts[0].ID)
	gt.NoError(t, err)
	gt.NotNil(t, stored)
	gt.Equal(t, f.repo.GetCallCount("GetOrCreateEntity"), 2)
}

func TestHandleMessageAutoDelete(t *testing.T) {
	f := newFixture(t)
	uc := f.useCases(t, usecase.WithAutoDelete(true))

	gt.NoError(t, uc.HandleMessage(t.Context(), message("https://evil.example/payload")))
	gt.Equal(t, f.platform.Calls("DeleteMessage"), 1)
	gt.A(t, f.notifier.Alerts()).Length(1)
}

func TestHandleMessageIgnored(t *testing.T) {
	testCases := map[string]event.Message{
		"bot author": func() event.Message {
			m := message("https://evil.example/payload")
			m.AuthorIsBot = true
			return m
		}(),
		"empty": message("   "),
		"malformed": func() event.Message {
			m := message("https://evil.example/payload")
			m.AuthorID = ""
			return m
		}(),
		"direct message": func() event.Message {
			m := message("https://evil.example/payload")
			m.CommunityID = ""
			return m
		}(),
	}

	for name, msg := range testCases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			uc := f.useCases(t)
			gt.NoError(t, uc.HandleMessage(t.Context(), msg))
			gt.A(t, f.notifier.Alerts()).Length(0)
		})
	}
}

func TestHandleMessageBenign(t *testing.T) {
	f := newFixture(t)
	uc := f.useCases(t)

	gt.NoError(t, uc.HandleMessage(t.Context(), message("good morning, see https://example.com/docs")))
	gt.A(t, f.notifier.Alerts()).Length(0)
	gt.Equal(t, f.urlRep.CheckURLsCalls(), 1)
}

func TestHandleMessageMentionAsksAssistant(t *testing.T) {
	var questions []string
	llm := &gollem_mock.LLMClientMock{
		NewSessionFunc: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &gollem_mock.SessionMock{
				GenerateContentFunc: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					for _, in := range input {
						if text, ok := in.(gollem.Text); ok {
							questions = append(questions, string(text))
						}
					}
					return &gollem.Response{Texts: []string{"Use the report button."}}, nil
				},
			}, nil
		},
	}

	f := newFixture(t)
	uc := f.useCases(t, usecase.WithAssistant(assist.New(llm)))

	msg := message("<@12345> how do I report spam?")
	msg.MentionsBot = true
	gt.NoError(t, uc.HandleMessage(t.Context(), msg))

	gt.Equal(t, f.sent, []string{"Use the report button."})
	gt.A(t, questions).Length(1)
	gt.Equal(t, questions[0], "how do I report spam?")
}

func join(user string, created time.Time) event.MemberJoin {
	return event.MemberJoin{
		CommunityID:      "g1",
		UserID:           types.UserID(user),
		Username:         user,
		AccountCreatedAt: created,
		JoinedAt:         time.Now(),
	}
}

func TestHandleMemberJoinNewAccount(t *testing.T) {
	f := newFixture(t)
	uc := f.useCases(t, usecase.WithMinAccountAgeDays(7), usecase.WithRaidDetector(nil))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := clock.Fixed(t.Context(), now)

	gt.NoError(t, uc.HandleMemberJoin(ctx, join("fresh", now.Add(-48*time.Hour))))
	alerts := f.notifier.Alerts()
	gt.A(t, alerts).Length(1)
	gt.Equal(t, alerts[0].ThreatType, types.SignalNewAccount)
	gt.Equal(t, alerts[0].Score, usecase.NewAccountScore)

	t.Run("open alert is not duplicated", func(t *testing.T) {
		gt.NoError(t, uc.HandleMemberJoin(ctx, join("fresh", now.Add(-48*time.Hour))))
		gt.A(t, f.notifier.Alerts()).Length(1)
	})

	t.Run("old account passes", func(t *testing.T) {
		gt.NoError(t, uc.HandleMemberJoin(ctx, join("veteran", now.Add(-365*24*time.Hour))))
		gt.A(t, f.notifier.Alerts()).Length(1)
	})
}

func TestHandleMemberJoinRaid(t *testing.T) {
	f := newFixture(t)
	uc := f.useCases(t)

	for i := range 3 {
		gt.NoError(t, uc.HandleMemberJoin(t.Context(), join(fmt.Sprintf("raider-%d", i), time.Time{})))
	}

	gt.Equal(t, f.platform.Calls("RaiseVerificationLevel"), 1)
	gt.Equal(t, f.platform.Calls("RemoveMember"), 3)
	gt.A(t, f.notifier.Reports()).Length(1)
}

func TestHandleAuditLogEntry(t *testing.T) {
	f := newFixture(t)
	uc := f.useCases(t)

	for i := range 3 {
		gt.NoError(t, uc.HandleAuditLogEntry(t.Context(), event.AuditLogEntry{
			ID:          fmt.Sprintf("entry-%d", i),
			CommunityID: "g1",
			ActorID:     "rogue-mod",
			TargetID:    fmt.Sprintf("victim-%d", i),
			Action:      event.AuditMemberBan,
		}))
	}

	alerts := f.notifier.Alerts()
	gt.A(t, alerts).Length(1)
	gt.Equal(t, alerts[0].ThreatType, types.SignalMassModeration)

	t.Run("malformed entry is dropped", func(t *testing.T) {
		gt.NoError(t, uc.HandleAuditLogEntry(t.Context(), event.AuditLogEntry{Action: event.AuditMemberBan}))
	})
}

func TestHandleAlertAction(t *testing.T) {
	f := newFixture(t)
	uc := f.useCases(t)

	gt.NoError(t, uc.HandleMessage(t.Context(), message("https://evil.example/payload")))
	alert := f.notifier.Alerts()[0]

	outcome := uc.HandleAlertAction(t.Context(), event.ButtonClick{
		Source:    event.ButtonSourceSlack,
		AlertID:   alert.ID,
		Action:    types.AnalystBan,
		AnalystID: "analyst-1",
	})
	gt.True(t, outcome.Success)
	gt.Equal(t, f.platform.Calls("BanMember"), 1)

	second := uc.HandleAlertAction(t.Context(), event.ButtonClick{
		Source:    event.ButtonSourceDiscord,
		AlertID:   alert.ID,
		Action:    types.AnalystIgnore,
		AnalystID: "analyst-2",
	})
	gt.True(t, second.AlreadyHandled)
	gt.Equal(t, f.platform.Calls("BanMember"), 1)

	malformed := uc.HandleAlertAction(t.Context(), event.ButtonClick{AlertID: alert.ID, Action: "nuke", AnalystID: "a"})
	gt.False(t, malformed.Success)
	gt.Equal(t, malformed.Message, "This button is not recognised.")
}
