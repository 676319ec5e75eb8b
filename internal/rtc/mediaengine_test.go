package rtc

import (
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isqad/livelook-bridge/internal/config"
)

func TestIsCodecEnabled(t *testing.T) {
	enabled := []config.CodecSpec{
		{Mime: "audio/opus"},
		{Mime: webrtc.MimeTypeH264, FmtpLine: h264BaselineFmtp},
	}

	assert.True(t, isCodecEnabled(enabled, webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}))
	assert.True(t, isCodecEnabled(enabled, webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, SDPFmtpLine: h264BaselineFmtp}))
	assert.False(t, isCodecEnabled(enabled, webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, SDPFmtpLine: h264HighFmtp}))
	assert.False(t, isCodecEnabled(enabled, webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU}))
}

func TestNewPCTransportOffersBridgeCodecs(t *testing.T) {
	conf := config.NewConfig()
	rtcConf, err := config.NewWebRTCConfig(conf)
	require.Nil(t, err)

	transport, err := NewPCTransport(TransportParams{EnabledCodecs: conf.Peer.EnabledCodecs, Config: rtcConf})
	require.Nil(t, err)
	defer transport.Close()

	pc := transport.PeerConnection()
	_, err = newPionTransceiver(pc, "video", videoCapability(), webrtc.RTPTransceiverDirectionSendonly)
	require.Nil(t, err)
	_, err = newPionTransceiver(pc, "audio", audioCapability(), webrtc.RTPTransceiverDirectionSendrecv)
	require.Nil(t, err)

	offer, err := pc.CreateOffer(nil)
	require.Nil(t, err)

	assert.Contains(t, offer.SDP, "H264/90000")
	assert.Contains(t, offer.SDP, "profile-level-id=42e01f")
	assert.Contains(t, offer.SDP, "opus/48000/2")
	assert.Contains(t, offer.SDP, "PCMU/8000")
	assert.Contains(t, offer.SDP, "PCMA/8000")
	assert.Contains(t, offer.SDP, "a=sendonly")
	assert.Contains(t, offer.SDP, "a=sendrecv")
}
