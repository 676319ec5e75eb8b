// Package signaling exchanges session descriptions and ICE candidates
// between two parties that each expose a Session.
package signaling

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog/log"

	"github.com/isqad/livelook-bridge/internal/core"
)

// Setup is what a party expects from the exchange
type Setup struct {
	Audio      webrtc.RTPTransceiverDirection
	Video      webrtc.RTPTransceiverDirection
	ICEServers []webrtc.ICEServer
}

func NewSetup(audio, video webrtc.RTPTransceiverDirection, iceServers []webrtc.ICEServer) Setup {
	return Setup{
		Audio:      audio,
		Video:      video,
		ICEServers: iceServers,
	}
}

type Session interface {
	Options(ctx context.Context) (*core.SignalingOptions, error)
	// CreateLocalDescription produces an offer or an answer. Candidates
	// gathered afterwards are passed to onCandidate.
	CreateLocalDescription(
		ctx context.Context,
		typ webrtc.SDPType,
		setup Setup,
		onCandidate func(webrtc.ICECandidateInit),
	) (webrtc.SessionDescription, error)
	SetRemoteDescription(ctx context.Context, desc webrtc.SessionDescription, setup Setup) error
	AddICECandidate(ctx context.Context, candidate webrtc.ICECandidateInit) error
}

// Connect runs one offer/answer round between offerer and answerer and
// trickles candidates both ways. It returns once both sides have the
// remote description, connectivity is not awaited.
func Connect(ctx context.Context, offerer Session, offerSetup Setup, answerer Session, answerSetup Setup) error {
	offer, err := offerer.CreateLocalDescription(ctx, webrtc.SDPTypeOffer, offerSetup, trickle(ctx, "answerer", answerer))
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}

	if err := answerer.SetRemoteDescription(ctx, offer, answerSetup); err != nil {
		return fmt.Errorf("set offer: %w", err)
	}

	answer, err := answerer.CreateLocalDescription(ctx, webrtc.SDPTypeAnswer, answerSetup, trickle(ctx, "offerer", offerer))
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}

	if err := offerer.SetRemoteDescription(ctx, answer, offerSetup); err != nil {
		return fmt.Errorf("set answer: %w", err)
	}

	return nil
}

func trickle(ctx context.Context, to string, session Session) func(webrtc.ICECandidateInit) {
	return func(candidate webrtc.ICECandidateInit) {
		if err := session.AddICECandidate(ctx, candidate); err != nil {
			log.Error().Err(err).Str("service", "signaling").Str("to", to).Msg("can't add ICE candidate")
		}
	}
}
