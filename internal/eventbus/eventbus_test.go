package eventbus

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isqad/livelook-bridge/internal/core"
	"github.com/isqad/livelook-bridge/internal/eventbus/rpc"
)

type MockSubscriber struct {
	ServerSubscribed bool
	ClientSubscribed bool
	Bus              RedisBus
}

func NewMockSubscriber(bus RedisBus) *MockSubscriber {
	return &MockSubscriber{
		Bus: bus,
	}
}

func (s *MockSubscriber) SubscribeServer() (RedisBus, error) {
	s.ServerSubscribed = true

	return s.Bus, nil
}

func (s *MockSubscriber) SubscribeClient(userID core.UserSessionID) (RedisBus, error) {
	s.ClientSubscribed = true

	return s.Bus, nil
}

type MockBus struct {
	Messages chan *redis.Message
}

func NewMockBus() *MockBus {
	return &MockBus{Messages: make(chan *redis.Message)}
}

func (b *MockBus) Channel() <-chan *redis.Message {
	return b.Messages
}

func (b *MockBus) Close() error {
	close(b.Messages)
	return nil
}

type MockPublisher struct {
	lock   sync.Mutex
	Client []rpc.Rpc
	Server []ServerMessage
	sent   chan rpc.Rpc
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{sent: make(chan rpc.Rpc, 16)}
}

func (p *MockPublisher) PublishClient(userID core.UserSessionID, r rpc.Rpc) error {
	p.lock.Lock()
	p.Client = append(p.Client, r)
	p.lock.Unlock()

	p.sent <- r
	return nil
}

func (p *MockPublisher) PublishServer(msg ServerMessage) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.Server = append(p.Server, msg)
	return nil
}

func TestBuildChannel(t *testing.T) {
	assert.Equal(t, "client_messages:user-1", ClientMessages.buildChannel("user-1"))
}

func TestServerMessageJSON(t *testing.T) {
	payload, err := json.Marshal(ServerMessage{
		UserID:  "user-1",
		Message: json.RawMessage(`{"jsonrpc":"2.0","method":"close_session"}`),
	})
	require.Nil(t, err)
	assert.JSONEq(t, `{"user_id":"user-1","rpc":{"jsonrpc":"2.0","method":"close_session"}}`, string(payload))
}
