package forwarder

import (
	"fmt"

	"github.com/isqad/livelook-bridge/internal/core"
	"github.com/isqad/livelook-bridge/internal/media"
)

const (
	videoPayloadType = 96
	audioPayloadType = 97
)

// shouldCopy reports whether the track can take the source bitstream as is
func shouldCopy(track *RtpTrack, sourceCodec string) bool {
	if track.CodecCopy == "" {
		return false
	}
	return track.CodecCopy == core.CodecCopyAny || track.CodecCopy == sourceCodec
}

func hasCodecSelection(args []string, kind core.TrackKind) bool {
	flags := map[string]bool{"-codec": true}
	if kind == core.VideoTrack {
		flags["-vcodec"], flags["-c:v"], flags["-codec:v"] = true, true, true
	} else {
		flags["-acodec"], flags["-c:a"], flags["-codec:a"] = true, true, true
	}
	for _, a := range args {
		if flags[a] {
			return true
		}
	}
	return false
}

func trackOutputArguments(kind core.TrackKind, track *RtpTrack, sourceCodec, host string, port int) []string {
	args := []string{"-sn", "-dn"}
	payloadType := videoPayloadType
	if kind == core.VideoTrack {
		args = append(args, "-an")
	} else {
		args = append(args, "-vn")
		payloadType = audioPayloadType
	}

	if shouldCopy(track, sourceCodec) {
		args = append(args, copyArguments(kind, track.EncoderArguments)...)
	} else {
		args = append(args, track.EncoderArguments...)
	}

	url := fmt.Sprintf("rtp://%s:%d", host, port)
	if track.PacketSize > 0 {
		url = fmt.Sprintf("%s?pkt_size=%d", url, track.PacketSize)
	}

	return append(args, "-payload_type", fmt.Sprint(payloadType), "-f", "rtp", url)
}

// copyArguments keeps bitstream filters from the plan and makes sure the
// encoder is "copy"
func copyArguments(kind core.TrackKind, planArgs []string) []string {
	args := append([]string(nil), planArgs...)
	if hasCodecSelection(args, kind) {
		return args
	}
	if kind == core.VideoTrack {
		return append(args, "-vcodec", "copy")
	}
	return append(args, "-acodec", "copy")
}

// buildArguments composes the ffmpeg command line for one forward
func buildArguments(input *media.TranscoderInput, tracks Tracks, host string, ports map[core.TrackKind]int) []string {
	args := []string{"-hide_banner", "-nostats", "-loglevel", "warning"}
	args = append(args, input.InputArguments...)
	args = append(args, input.VideoDecoderArguments...)
	args = append(args, "-i", input.URL)

	tracks.each(func(kind core.TrackKind, track *RtpTrack) {
		source := input.VideoCodec()
		if kind == core.AudioTrack {
			source = input.AudioCodec()
		}
		args = append(args, trackOutputArguments(kind, track, source, host, ports[kind])...)
	})

	return args
}
