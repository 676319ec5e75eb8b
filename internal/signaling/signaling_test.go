package signaling

import (
	"context"
	"errors"
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isqad/livelook-bridge/internal/core"
)

type call struct {
	method string
	typ    webrtc.SDPType
	setup  Setup
}

type fakeSession struct {
	name       string
	log        *[]string
	calls      []call
	candidates []webrtc.ICECandidateInit
	gathered   []webrtc.ICECandidateInit
	err        error
}

func (s *fakeSession) Options(ctx context.Context) (*core.SignalingOptions, error) {
	return &core.SignalingOptions{}, nil
}

func (s *fakeSession) CreateLocalDescription(
	ctx context.Context,
	typ webrtc.SDPType,
	setup Setup,
	onCandidate func(webrtc.ICECandidateInit),
) (webrtc.SessionDescription, error) {
	*s.log = append(*s.log, s.name+" create "+typ.String())
	s.calls = append(s.calls, call{method: "create", typ: typ, setup: setup})
	if s.err != nil {
		return webrtc.SessionDescription{}, s.err
	}
	for _, c := range s.gathered {
		onCandidate(c)
	}
	return webrtc.SessionDescription{Type: typ, SDP: s.name}, nil
}

func (s *fakeSession) SetRemoteDescription(ctx context.Context, desc webrtc.SessionDescription, setup Setup) error {
	*s.log = append(*s.log, s.name+" set "+desc.Type.String()+" from "+desc.SDP)
	s.calls = append(s.calls, call{method: "set", typ: desc.Type, setup: setup})
	return nil
}

func (s *fakeSession) AddICECandidate(ctx context.Context, candidate webrtc.ICECandidateInit) error {
	s.candidates = append(s.candidates, candidate)
	return nil
}

func TestConnect(t *testing.T) {
	var events []string
	client := &fakeSession{
		name:     "client",
		log:      &events,
		gathered: []webrtc.ICECandidateInit{{Candidate: "candidate:client"}},
	}
	local := &fakeSession{
		name:     "local",
		log:      &events,
		gathered: []webrtc.ICECandidateInit{{Candidate: "candidate:local"}},
	}

	clientSetup := NewSetup(webrtc.RTPTransceiverDirectionRecvonly, webrtc.RTPTransceiverDirectionRecvonly, nil)
	localSetup := NewSetup(webrtc.RTPTransceiverDirectionSendonly, webrtc.RTPTransceiverDirectionSendonly, nil)

	err := Connect(context.Background(), client, clientSetup, local, localSetup)
	require.Nil(t, err)

	assert.Equal(t, []string{
		"client create offer",
		"local set offer from client",
		"local create answer",
		"client set answer from local",
	}, events)

	assert.Equal(t, []webrtc.ICECandidateInit{{Candidate: "candidate:client"}}, local.candidates)
	assert.Equal(t, []webrtc.ICECandidateInit{{Candidate: "candidate:local"}}, client.candidates)

	for _, c := range client.calls {
		assert.Equal(t, clientSetup, c.setup)
	}
	for _, c := range local.calls {
		assert.Equal(t, localSetup, c.setup)
	}
}

func TestConnectOfferFailure(t *testing.T) {
	var events []string
	failure := errors.New("client went away")
	client := &fakeSession{name: "client", log: &events, err: failure}
	local := &fakeSession{name: "local", log: &events}

	err := Connect(context.Background(), client, Setup{}, local, Setup{})

	assert.ErrorIs(t, err, failure)
	assert.Empty(t, local.calls)
}
