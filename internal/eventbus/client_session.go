package eventbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog/log"

	"github.com/isqad/livelook-bridge/internal/core"
	"github.com/isqad/livelook-bridge/internal/eventbus/rpc"
	"github.com/isqad/livelook-bridge/internal/signaling"
)

const defaultOfferTimeout = 30 * time.Second

var (
	ErrOfferTimeout       = errors.New("client didn't send an offer in time")
	ErrOfferPending       = errors.New("previous offer is not consumed yet")
	ErrClientAlwaysOffers = errors.New("client session can only create offers")
)

// ClientSession is the browser side of a signaling exchange, reached
// through the gateway. The browser always creates the offer.
type ClientSession struct {
	userID       core.UserSessionID
	options      *core.SignalingOptions
	publisher    Publisher
	offerTimeout time.Duration
	offers       chan webrtc.SessionDescription

	lock        sync.Mutex
	onCandidate func(webrtc.ICECandidateInit)
	pending     []webrtc.ICECandidateInit
}

func NewClientSession(userID core.UserSessionID, options *core.SignalingOptions, publisher Publisher) *ClientSession {
	return &ClientSession{
		userID:       userID,
		options:      options,
		publisher:    publisher,
		offerTimeout: defaultOfferTimeout,
		offers:       make(chan webrtc.SessionDescription, 1),
	}
}

func (s *ClientSession) Options(ctx context.Context) (*core.SignalingOptions, error) {
	return s.options, nil
}

// CreateLocalDescription asks the browser for an offer and waits for it
func (s *ClientSession) CreateLocalDescription(
	ctx context.Context,
	typ webrtc.SDPType,
	setup signaling.Setup,
	onCandidate func(webrtc.ICECandidateInit),
) (webrtc.SessionDescription, error) {
	if typ != webrtc.SDPTypeOffer {
		return webrtc.SessionDescription{}, ErrClientAlwaysOffers
	}

	s.lock.Lock()
	s.onCandidate = onCandidate
	pending := s.pending
	s.pending = nil
	s.lock.Unlock()

	for _, c := range pending {
		onCandidate(c)
	}

	if err := s.publisher.PublishClient(s.userID, rpc.NewCreateOfferRpc(setup.Audio, setup.Video, setup.ICEServers)); err != nil {
		return webrtc.SessionDescription{}, err
	}

	timer := time.NewTimer(s.offerTimeout)
	defer timer.Stop()

	select {
	case offer := <-s.offers:
		return offer, nil
	case <-timer.C:
		return webrtc.SessionDescription{}, ErrOfferTimeout
	case <-ctx.Done():
		return webrtc.SessionDescription{}, ctx.Err()
	}
}

// SetRemoteDescription sends the bridge answer to the browser
func (s *ClientSession) SetRemoteDescription(ctx context.Context, desc webrtc.SessionDescription, setup signaling.Setup) error {
	return s.publisher.PublishClient(s.userID, rpc.NewSDPAnswerRpc(desc))
}

// AddICECandidate trickles a bridge candidate to the browser
func (s *ClientSession) AddICECandidate(ctx context.Context, candidate webrtc.ICECandidateInit) error {
	return s.publisher.PublishClient(s.userID, rpc.NewICECandidateRpc(candidate))
}

// DeliverOffer hands the browser's offer to the waiting exchange
func (s *ClientSession) DeliverOffer(offer webrtc.SessionDescription) error {
	select {
	case s.offers <- offer:
		return nil
	default:
		return ErrOfferPending
	}
}

// DeliverCandidate passes a browser candidate on. Candidates arriving
// before the exchange started are kept until it does.
func (s *ClientSession) DeliverCandidate(candidate webrtc.ICECandidateInit) {
	s.lock.Lock()
	onCandidate := s.onCandidate
	if onCandidate == nil {
		s.pending = append(s.pending, candidate)
		s.lock.Unlock()
		log.Debug().Str("service", "eventbus").Str("userID", string(s.userID)).Msg("candidate queued")
		return
	}
	s.lock.Unlock()

	onCandidate(candidate)
}

// End tells the browser the session is over
func (s *ClientSession) End(sessionID string) error {
	return s.publisher.PublishClient(s.userID, rpc.NewSessionEndedRpc(sessionID))
}
