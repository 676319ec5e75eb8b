package forwarder

import (
	"github.com/pion/sdp/v3"

	"github.com/isqad/livelook-bridge/internal/core"
)

// RtpTrack binds one output of the forwarder process to a sink.
// The buffer passed to OnRtp is reused after the call returns.
type RtpTrack struct {
	CodecCopy        string
	EncoderArguments []string
	PacketSize       int

	OnRtp       func(buf []byte)
	FirstPacket func()
	OnMSection  func(section *sdp.MediaDescription)
}

type Tracks struct {
	Video *RtpTrack
	Audio *RtpTrack
}

func (t Tracks) each(fn func(kind core.TrackKind, track *RtpTrack)) {
	if t.Video != nil {
		fn(core.VideoTrack, t.Video)
	}
	if t.Audio != nil {
		fn(core.AudioTrack, t.Audio)
	}
}
