package rtc

import (
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isqad/livelook-bridge/internal/core"
)

// pcmuFirstClient offers audio with PCMU listed ahead of opus
func pcmuFirstClient(t *testing.T) *webrtc.PeerConnection {
	t.Helper()

	me := &webrtc.MediaEngine{}
	for _, codec := range []webrtc.RTPCodecParameters{
		{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: 8000, Channels: 1}, PayloadType: 0},
		{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}, PayloadType: 111},
	} {
		require.Nil(t, me.RegisterCodec(codec, webrtc.RTPCodecTypeAudio))
	}

	pc, err := webrtc.NewAPI(webrtc.WithMediaEngine(me)).NewPeerConnection(webrtc.Configuration{})
	require.Nil(t, err)
	t.Cleanup(func() { pc.Close() })

	_, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly})
	require.Nil(t, err)

	return pc
}

func TestAudioPlanFollowsSenderTrack(t *testing.T) {
	client := pcmuFirstClient(t)

	transport, err := NewPCTransport(testTransportParams(t))
	require.Nil(t, err)
	t.Cleanup(transport.Close)

	audio, err := newPionTransceiver(transport.PeerConnection(), core.AudioTrack, audioCapability(), webrtc.RTPTransceiverDirectionSendonly)
	require.Nil(t, err)

	offer, err := client.CreateOffer(nil)
	require.Nil(t, err)
	require.Nil(t, client.SetLocalDescription(offer))

	pc := transport.PeerConnection()
	require.Nil(t, pc.SetRemoteDescription(offer))
	answer, err := pc.CreateAnswer(nil)
	require.Nil(t, err)
	require.Nil(t, pc.SetLocalDescription(answer))

	require.NotEmpty(t, audio.Codecs())
	assert.Equal(t, webrtc.MimeTypePCMU, audio.Codecs()[0])
	assert.Equal(t, webrtc.MimeTypeOpus, audio.SenderCodec())

	d := Decide(DecisionInput{
		SourceVideoCodec: "h264",
		SourceAudioCodec: "aac",
		Compat:           highProfileClient,
		AudioCodecs:      audio.Codecs(),
		AudioSender:      audio.SenderCodec(),
	})
	assert.Equal(t, "opus", d.Audio.CodecCopy)
	assert.Equal(t, "libopus", argValue(d.Audio.EncoderArguments, "-acodec"))

	// a PCMU camera gets its codec pinned instead
	d = Decide(DecisionInput{
		SourceVideoCodec: "h264",
		SourceAudioCodec: "pcm_ulaw",
		Compat:           highProfileClient,
		AudioCodecs:      audio.Codecs(),
		AudioSender:      audio.SenderCodec(),
	})
	require.Equal(t, webrtc.MimeTypePCMU, d.Audio.PinnedCodec)
	require.Nil(t, audio.PinCodec(d.Audio.PinnedCodec))
	assert.Equal(t, webrtc.MimeTypePCMU, audio.SenderCodec())
}
