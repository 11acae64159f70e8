package mock

import (
	"context"
	"sync"

	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/slack-go/slack"
)

var _ interfaces.SlackClient = &SlackClientMock{}

type SlackClientMock struct {
	PostMessageContextFunc   func(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContextFunc func(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)

	lock           sync.Mutex
	postCalls      int
	updateMessages []string
}

func (m *SlackClientMock) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	if m.PostMessageContextFunc == nil {
		panic("SlackClientMock.PostMessageContextFunc: method is nil but SlackClient.PostMessageContext was just called")
	}
	m.lock.Lock()
	m.postCalls++
	m.lock.Unlock()
	return m.PostMessageContextFunc(ctx, channelID, options...)
}

func (m *SlackClientMock) UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error) {
	if m.UpdateMessageContextFunc == nil {
		panic("SlackClientMock.UpdateMessageContextFunc: method is nil but SlackClient.UpdateMessageContext was just called")
	}
	m.lock.Lock()
	m.updateMessages = append(m.updateMessages, timestamp)
	m.lock.Unlock()
	return m.UpdateMessageContextFunc(ctx, channelID, timestamp, options...)
}

func (m *SlackClientMock) PostMessageContextCalls() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.postCalls
}

// UpdateMessageContextCalls returns the timestamps passed to UpdateMessageContext.
func (m *SlackClientMock) UpdateMessageContextCalls() []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]string(nil), m.updateMessages...)
}
