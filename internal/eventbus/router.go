package eventbus

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog/log"

	"github.com/isqad/livelook-bridge/internal/core"
	"github.com/isqad/livelook-bridge/internal/eventbus/rpc"
)

var (
	errNoUserID        = errors.New("can't get user id")
	errUndefinedMethod = errors.New("undefined method")
)

// Router subscribes to client messages relayed by the gateway and calls
// the bridge callbacks. Callbacks run on the router goroutine one by one.
type Router struct {
	EventsSubscriber Subscriber
	subscription     RedisBus
	stopped          chan struct{}

	onJoin            func(core.UserSessionID, *core.SignalingOptions) error
	onOffer           func(core.UserSessionID, webrtc.SessionDescription) error
	onAddICECandidate func(core.UserSessionID, webrtc.ICECandidateInit) error
	onSetPlayback     func(core.UserSessionID, rpc.PlaybackParams) error
	onCloseSession    func(core.UserSessionID) error
}

func NewRouter(sub Subscriber) (*Router, error) {
	router := &Router{
		EventsSubscriber: sub,
		stopped:          make(chan struct{}),
	}
	subscription, err := router.EventsSubscriber.SubscribeServer()
	if err != nil {
		return nil, err
	}
	router.subscription = subscription

	return router, nil
}

// Start returns a channel closed once the router is receiving
func (router *Router) Start() <-chan struct{} {
	log.Debug().Str("service", "eventbus").Msg("start router")

	started := make(chan struct{})
	go func() {
		defer close(router.stopped)

		channel := router.subscription.Channel()
		close(started)

		for msg := range channel {
			router.dispatch(msg.Payload)
		}
	}()

	return started
}

// Stop closes the subscription. The returned channel is closed once the
// messages already received are dispatched.
func (router *Router) Stop() <-chan struct{} {
	if err := router.subscription.Close(); err != nil {
		log.Error().Err(err).Str("service", "eventbus").Msg("close subscription")
	}
	return router.stopped
}

func (router *Router) dispatch(payload string) {
	userID, r, err := parseRpc(payload)
	if err != nil {
		log.Error().Err(err).Str("service", "eventbus").Msg("can't parse server message")
		return
	}
	logger := log.With().Str("service", "eventbus").Str("userID", string(userID)).Str("rpcMethod", string(r.GetMethod())).Logger()

	switch msg := r.(type) {
	case *rpc.JoinRpc:
		if router.onJoin != nil {
			err = router.onJoin(userID, msg.Params)
		}
	case *rpc.SDPRpc:
		if msg.GetMethod() != rpc.SDPOfferMethod {
			err = errUndefinedMethod
			break
		}
		if router.onOffer != nil {
			err = router.onOffer(userID, msg.Params)
		}
	case *rpc.ICECandidateRpc:
		if router.onAddICECandidate != nil {
			err = router.onAddICECandidate(userID, msg.Params)
		}
	case *rpc.SetPlaybackRpc:
		if router.onSetPlayback != nil {
			err = router.onSetPlayback(userID, msg.Params)
		}
	case *rpc.CloseSessionRpc:
		if router.onCloseSession != nil {
			err = router.onCloseSession(userID)
		}
	default:
		err = errUndefinedMethod
	}

	if err != nil {
		logger.Error().Err(err).Msg("rpc failed")
	}
}

func parseRpc(payload string) (core.UserSessionID, rpc.Rpc, error) {
	serverMessage := ServerMessage{}
	if err := json.Unmarshal([]byte(payload), &serverMessage); err != nil {
		return "", nil, err
	}
	if serverMessage.UserID == "" {
		return "", nil, errNoUserID
	}

	r, err := rpc.RpcFromReader(bytes.NewReader(serverMessage.Message))
	if err != nil {
		return "", nil, err
	}
	return serverMessage.UserID, r, nil
}

func (router *Router) OnJoin(callback func(core.UserSessionID, *core.SignalingOptions) error) {
	router.onJoin = callback
}

func (router *Router) OnOffer(callback func(core.UserSessionID, webrtc.SessionDescription) error) {
	router.onOffer = callback
}

func (router *Router) OnAddICECandidate(callback func(core.UserSessionID, webrtc.ICECandidateInit) error) {
	router.onAddICECandidate = callback
}

func (router *Router) OnSetPlayback(callback func(core.UserSessionID, rpc.PlaybackParams) error) {
	router.onSetPlayback = callback
}

func (router *Router) OnCloseSession(callback func(core.UserSessionID) error) {
	router.onCloseSession = callback
}
