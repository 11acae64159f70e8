package mock

import (
	"context"
	"sync"
	"time"

	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/types"
)

var _ interfaces.Platform = &PlatformMock{}

type PlatformMock struct {
	DeleteMessageFunc          func(ctx context.Context, channelID types.ChannelID, messageID types.MessageID) error
	TimeoutMemberFunc          func(ctx context.Context, communityID types.CommunityID, userID types.UserID, until time.Time, reason string) error
	BanMemberFunc              func(ctx context.Context, communityID types.CommunityID, userID types.UserID, reason string, deleteMessageDays int) error
	RemoveMemberFunc           func(ctx context.Context, communityID types.CommunityID, userID types.UserID, reason string) error
	RaiseVerificationLevelFunc func(ctx context.Context, communityID types.CommunityID) error
	SendMessageFunc            func(ctx context.Context, channelID types.ChannelID, content string) error

	lock  sync.Mutex
	calls map[string]int
}

func (m *PlatformMock) record(name string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[name]++
}

// Calls returns how many times the named method was called.
func (m *PlatformMock) Calls(name string) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.calls[name]
}

// TotalCalls counts calls across every method.
func (m *PlatformMock) TotalCalls() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func (m *PlatformMock) DeleteMessage(ctx context.Context, channelID types.ChannelID, messageID types.MessageID) error {
	if m.DeleteMessageFunc == nil {
		panic("PlatformMock.DeleteMessageFunc: method is nil but Platform.DeleteMessage was just called")
	}
	m.record("DeleteMessage")
	return m.DeleteMessageFunc(ctx, channelID, messageID)
}

func (m *PlatformMock) TimeoutMember(ctx context.Context, communityID types.CommunityID, userID types.UserID, until time.Time, reason string) error {
	if m.TimeoutMemberFunc == nil {
		panic("PlatformMock.TimeoutMemberFunc: method is nil but Platform.TimeoutMember was just called")
	}
	m.record("TimeoutMember")
	return m.TimeoutMemberFunc(ctx, communityID, userID, until, reason)
}

func (m *PlatformMock) BanMember(ctx context.Context, communityID types.CommunityID, userID types.UserID, reason string, deleteMessageDays int) error {
	if m.BanMemberFunc == nil {
		panic("PlatformMock.BanMemberFunc: method is nil but Platform.BanMember was just called")
	}
	m.record("BanMember")
	return m.BanMemberFunc(ctx, communityID, userID, reason, deleteMessageDays)
}

func (m *PlatformMock) RemoveMember(ctx context.Context, communityID types.CommunityID, userID types.UserID, reason string) error {
	if m.RemoveMemberFunc == nil {
		panic("PlatformMock.RemoveMemberFunc: method is nil but Platform.RemoveMember was just called")
	}
	m.record("RemoveMember")
	return m.RemoveMemberFunc(ctx, communityID, userID, reason)
}

func (m *PlatformMock) RaiseVerificationLevel(ctx context.Context, communityID types.CommunityID) error {
	if m.RaiseVerificationLevelFunc == nil {
		panic("PlatformMock.RaiseVerificationLevelFunc: method is nil but Platform.RaiseVerificationLevel was just called")
	}
	m.record("RaiseVerificationLevel")
	return m.RaiseVerificationLevelFunc(ctx, communityID)
}

func (m *PlatformMock) SendMessage(ctx context.Context, channelID types.ChannelID, content string) error {
	if m.SendMessageFunc == nil {
		panic("PlatformMock.SendMessageFunc: method is nil but Platform.SendMessage was just called")
	}
	m.record("SendMessage")
	return m.SendMessageFunc(ctx, channelID, content)
}
