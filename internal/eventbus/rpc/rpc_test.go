package rpc

import (
	"strings"
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, payload string) Rpc {
	t.Helper()

	r, err := RpcFromReader(strings.NewReader(payload))
	require.Nil(t, err)
	return r
}

func TestJoinCarriesOptions(t *testing.T) {
	r := parse(t, `{"jsonrpc":"2.0","method":"join","params":{
		"userAgent":"Mozilla/5.0 Firefox/115.0",
		"screen":{"width":1920},
		"capabilities":{"video":[{"mimeType":"video/H264","sdpFmtpLine":"profile-level-id=640c1f"}]}
	}}`)

	join, ok := r.(*JoinRpc)
	require.True(t, ok)
	assert.Equal(t, JoinMethod, join.GetMethod())
	assert.Equal(t, 1920, join.Params.ScreenWidth())
	require.Len(t, join.Params.VideoCodecs(), 1)
	assert.Equal(t, "profile-level-id=640c1f", join.Params.VideoCodecs()[0].SDPFmtpLine)

	// a client may tell nothing at all
	join = parse(t, `{"jsonrpc":"2.0","method":"join","params":null}`).(*JoinRpc)
	assert.Equal(t, 0, join.Params.ScreenWidth())
}

func TestCreateOfferDirections(t *testing.T) {
	created := NewCreateOfferRpc(webrtc.RTPTransceiverDirectionSendrecv, webrtc.RTPTransceiverDirectionRecvonly, nil)
	payload, err := created.ToJSON()
	require.Nil(t, err)
	assert.Contains(t, string(payload), `"audio":"sendrecv"`)
	assert.Contains(t, string(payload), `"video":"recvonly"`)

	r := parse(t, string(payload)).(*CreateOfferRpc)
	assert.Equal(t, webrtc.RTPTransceiverDirectionSendrecv, webrtc.NewRTPTransceiverDirection(r.Params.Audio))
	assert.Equal(t, webrtc.RTPTransceiverDirectionRecvonly, webrtc.NewRTPTransceiverDirection(r.Params.Video))
}

func TestSDPRpc(t *testing.T) {
	r := parse(t, `{"jsonrpc":"2.0","method":"offer","params":{"type":"offer","sdp":"v=0\r\n"}}`)

	offer, ok := r.(*SDPRpc)
	require.True(t, ok)
	assert.Equal(t, SDPOfferMethod, offer.GetMethod())
	assert.Equal(t, webrtc.SDPTypeOffer, offer.Params.Type)

	answer, err := NewSDPAnswerRpc(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\n"}).ToJSON()
	require.Nil(t, err)
	assert.Equal(t, SDPAnswerMethod, parse(t, string(answer)).GetMethod())

	_, err = RpcFromReader(strings.NewReader(`{"jsonrpc":"2.0","method":"offer","params":{}}`))
	assert.ErrorIs(t, err, ErrMalformedRpc)
}

func TestICECandidateRpc(t *testing.T) {
	r := parse(t, `{"jsonrpc":"2.0","method":"iceCandidate","params":{"candidate":"candidate:1 1 udp 2130706431 192.168.1.2 50000 typ host","sdpMid":"0"}}`)

	c, ok := r.(*ICECandidateRpc)
	require.True(t, ok)
	require.NotNil(t, c.Params.SDPMid)
	assert.Equal(t, "0", *c.Params.SDPMid)

	// candidates gathered by the bridge go back to the client the same way
	mid := "1"
	payload, err := NewICECandidateRpc(webrtc.ICECandidateInit{Candidate: "candidate:2 1 udp 1 10.0.0.1 40000 typ host", SDPMid: &mid}).ToJSON()
	require.Nil(t, err)
	c = parse(t, string(payload)).(*ICECandidateRpc)
	assert.Equal(t, ICECandidateMethod, c.GetMethod())
	assert.Equal(t, "1", *c.Params.SDPMid)
}

func TestCloseSessionFromGateway(t *testing.T) {
	payload, err := NewCloseSessionRpc().ToJSON()
	require.Nil(t, err)

	r, ok := parse(t, string(payload)).(*CloseSessionRpc)
	require.True(t, ok)
	assert.Equal(t, CloseSessionMethod, r.GetMethod())
	assert.Nil(t, r.Params)
}

func TestSetPlaybackAndSessionEnd(t *testing.T) {
	r := parse(t, `{"jsonrpc":"2.0","method":"set_playback","params":{"audio":true,"video":false}}`)
	assert.Equal(t, PlaybackParams{Audio: true}, r.(*SetPlaybackRpc).Params)

	assert.Equal(t, CloseSessionMethod, parse(t, `{"jsonrpc":"2.0","method":"close_session"}`).GetMethod())

	ended, err := NewSessionEndedRpc("session-1").ToJSON()
	require.Nil(t, err)
	assert.Equal(t, "session-1", parse(t, string(ended)).(*SessionEndedRpc).Params.SessionID)
}

func TestRpcFromReaderErrors(t *testing.T) {
	_, err := RpcFromReader(strings.NewReader(`{"jsonrpc":"2.0","method":"start_stream"}`))
	assert.ErrorIs(t, err, ErrUnknownRpcType)

	_, err = RpcFromReader(strings.NewReader(`{"jsonrpc":"1.0","method":"join"}`))
	assert.ErrorIs(t, err, ErrMalformedRpc)

	_, err = RpcFromReader(strings.NewReader(`{"jsonrpc":"2.0","method":"set_playback","params":"yes"}`))
	assert.ErrorIs(t, err, ErrMalformedRpc)

	_, err = RpcFromReader(strings.NewReader(`not json`))
	assert.NotNil(t, err)
}
