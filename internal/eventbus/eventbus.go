package eventbus

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"github.com/isqad/livelook-bridge/internal/core"
	"github.com/isqad/livelook-bridge/internal/eventbus/rpc"
)

type Channel string

const (
	ClientMessages Channel = "client_messages"
	ServerMessages Channel = "server_messages"
)

func (c Channel) buildChannel(userID core.UserSessionID) string {
	return string(c) + ":" + string(userID)
}

// ServerMessage is a client rpc relayed to the bridge
type ServerMessage struct {
	UserID  core.UserSessionID `json:"user_id"`
	Message json.RawMessage    `json:"rpc"`
}

type Publisher interface {
	PublishClient(userID core.UserSessionID, rpc rpc.Rpc) error
	PublishServer(msg ServerMessage) error
}

// RedisBus is a live subscription
type RedisBus interface {
	Channel() <-chan *redis.Message
	Close() error
}

type Subscriber interface {
	SubscribeServer() (RedisBus, error)
	SubscribeClient(userID core.UserSessionID) (RedisBus, error)
}

type Subscription struct {
	pubsub *redis.PubSub
}

func (s *Subscription) Channel() <-chan *redis.Message {
	return s.pubsub.Channel()
}

func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

type Eventbus struct {
	rdb *redis.Client
}

// RedisPubSub is factory for building Eventbus based on redis pubsub
func RedisPubSub(rdb *redis.Client) *Eventbus {
	return &Eventbus{rdb: rdb}
}

// PublishClient sends the rpc to the client's gateway connection
func (e *Eventbus) PublishClient(userID core.UserSessionID, rpc rpc.Rpc) error {
	msg, err := rpc.ToJSON()
	if err != nil {
		return err
	}
	return e.rdb.Publish(context.Background(), ClientMessages.buildChannel(userID), msg).Err()
}

// PublishServer sends a client message to the bridge. All bridge instances
// share one channel.
func (e *Eventbus) PublishServer(msg ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return e.rdb.Publish(context.Background(), string(ServerMessages), payload).Err()
}

func (e *Eventbus) SubscribeServer() (RedisBus, error) {
	return e.subscribe(string(ServerMessages))
}

func (e *Eventbus) SubscribeClient(userID core.UserSessionID) (RedisBus, error) {
	return e.subscribe(ClientMessages.buildChannel(userID))
}

func (e *Eventbus) subscribe(channel string) (RedisBus, error) {
	ctx := context.Background()
	pubsub := e.rdb.Subscribe(ctx, channel)
	// Wait until subscription is created
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	return &Subscription{pubsub: pubsub}, nil
}
