package rtc

import (
	"strconv"
	"strings"

	"github.com/pion/webrtc/v3"

	"github.com/isqad/livelook-bridge/internal/core"
)

const (
	sourceCodecH264 = "h264"
	sourceCodecOpus = "opus"
	sourceCodecPCMU = "pcm_ulaw"
	sourceCodecPCMA = "pcm_alaw"

	privateDefaultBitrate = 1000000
	remoteDefaultBitrate  = 500000
	transcodeFrameRate    = 15
)

// baselineEncoderArguments is the configuration every client decodes:
// constrained baseline, closed gop, no b-frames
func baselineEncoderArguments() []string {
	return []string{
		"-profile:v", "baseline",
		"-preset", "ultrafast",
		"-g", "60",
		"-c:v", "libx264",
		"-bf", "0",
	}
}

// RequestHints picks the stream variant and the party that produces the
// final bitstream before the source is asked for a stream.
func RequestHints(compat core.CompatibilityDecision, maxCompatibilityMode, isPrivate bool) (core.DestinationHint, core.ToolHint) {
	transcodeBaseline := !compat.SessionSupportsHighProfile || maxCompatibilityMode

	destination := core.DestinationRemote
	if isPrivate {
		destination = core.DestinationLocal
		if transcodeBaseline {
			destination = core.DestinationMediumResolution
		}
	}

	tool := core.ToolPassthrough
	if transcodeBaseline {
		tool = core.ToolTranscoder
	}

	return destination, tool
}

type DecisionInput struct {
	SourceAudioCodec   string
	SourceVideoCodec   string
	OobCodecParameters bool
	SourceBitrate      int
	EncoderArguments   []string
	FilterArguments    []string

	Compat               core.CompatibilityDecision
	MaxCompatibilityMode bool
	IsPrivate            bool

	// AudioCodecs are the mime types negotiated for the audio sender
	AudioCodecs []string
	// AudioSender is the mime type the audio sender uses unless pinned
	AudioSender string
}

func (in DecisionInput) hasEncoderOverrides() bool {
	return len(in.EncoderArguments) > 0 || len(in.FilterArguments) > 0
}

// ForwardingDecision is one plan per track kind plus what led to it
type ForwardingDecision struct {
	Audio     core.ForwardingPlan
	Video     core.ForwardingPlan
	Transcode bool
	Baseline  bool
	Bitrate   int
	Fallback  core.FallbackReason
}

// Decide is pure: same input, same plans.
func Decide(in DecisionInput) ForwardingDecision {
	baseline := !in.Compat.SessionSupportsHighProfile || in.MaxCompatibilityMode
	transcode := baseline ||
		!strings.EqualFold(in.SourceVideoCodec, sourceCodecH264) ||
		in.hasEncoderOverrides()

	d := ForwardingDecision{
		Transcode: transcode,
		Baseline:  baseline,
	}

	videoArgs := make([]string, 0, 24)
	if in.OobCodecParameters {
		videoArgs = append(videoArgs, "-bsf:v", "dump_extra")
	}
	videoArgs = append(videoArgs, in.FilterArguments...)

	video := core.ForwardingPlan{Kind: core.VideoTrack}
	if transcode {
		d.Bitrate = targetBitrate(in)
		videoArgs = append(videoArgs,
			"-b:v", strconv.Itoa(d.Bitrate),
			"-bufsize", strconv.Itoa(2*d.Bitrate),
			"-maxrate", strconv.Itoa(d.Bitrate),
			"-r", strconv.Itoa(transcodeFrameRate),
		)
		videoArgs = addVideoFilter(videoArgs, scaleFilter(in.Compat.TranscodeWidth))

		switch {
		case baseline:
			videoArgs = append(videoArgs, baselineEncoderArguments()...)
		case len(in.EncoderArguments) > 0:
			videoArgs = append(videoArgs, in.EncoderArguments...)
		default:
			videoArgs = append(videoArgs, baselineEncoderArguments()...)
		}
		video.NeedsRepacketization = true
	} else {
		videoArgs = append(videoArgs, "-vcodec", "copy")
		video.CodecCopy = sourceCodecH264
	}
	video.EncoderArguments = videoArgs

	d.Video = video
	d.Audio = decideAudio(in)

	return d
}

func targetBitrate(in DecisionInput) int {
	conservative := remoteDefaultBitrate
	if in.IsPrivate {
		conservative = privateDefaultBitrate
	}
	if in.MaxCompatibilityMode || in.SourceBitrate <= 0 {
		return conservative
	}
	return in.SourceBitrate
}

func scaleFilter(width int) string {
	return "scale='min(" + strconv.Itoa(clampWidth(width)) + ",iw)':-2"
}

// addVideoFilter chains filter onto an existing video filter argument
func addVideoFilter(args []string, filter string) []string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-vf" || args[i] == "-filter:v" {
			args[i+1] = args[i+1] + "," + filter
			return args
		}
	}
	return append(args, "-vf", filter)
}

func decideAudio(in DecisionInput) core.ForwardingPlan {
	plan := core.ForwardingPlan{Kind: core.AudioTrack}

	sender := in.AudioSender
	if sender == "" {
		sender = webrtc.MimeTypeOpus
	}

	if !in.MaxCompatibilityMode {
		var pin string
		switch in.SourceAudioCodec {
		case sourceCodecPCMU:
			pin = webrtc.MimeTypePCMU
		case sourceCodecPCMA:
			pin = webrtc.MimeTypePCMA
		}
		if pin != "" && containsMime(in.AudioCodecs, pin) {
			plan.PinnedCodec = pin
			sender = pin
		}
	}

	name, args := audioOutput(sender)
	if !in.MaxCompatibilityMode {
		plan.CodecCopy = name
	}
	plan.EncoderArguments = args

	return plan
}

// audioOutput maps the sender mime type to the source codec name it can
// copy and the arguments to encode anything else into it
func audioOutput(mimeType string) (string, []string) {
	switch {
	case strings.EqualFold(mimeType, webrtc.MimeTypePCMU):
		return sourceCodecPCMU, []string{"-acodec", "pcm_mulaw", "-ar", "8k", "-ac", "1"}
	case strings.EqualFold(mimeType, webrtc.MimeTypePCMA):
		return sourceCodecPCMA, []string{"-acodec", "pcm_alaw", "-ar", "8k", "-ac", "1"}
	default:
		return sourceCodecOpus, []string{
			"-acodec", "libopus",
			"-application", "lowdelay",
			"-frame_duration", "20",
			"-ar", "48k",
			"-ac", "2",
		}
	}
}

func containsMime(mimes []string, mime string) bool {
	for _, m := range mimes {
		if strings.EqualFold(m, mime) {
			return true
		}
	}
	return false
}

// Degrade turns the decision into a best-effort copy of whatever the
// upstream emits. Video is always repacketized since nothing guarantees
// its framing fits the transport.
func (d ForwardingDecision) Degrade(reason core.FallbackReason) ForwardingDecision {
	degraded := d
	degraded.Fallback = reason
	degraded.Audio = core.ForwardingPlan{
		Kind:        core.AudioTrack,
		CodecCopy:   core.CodecCopyAny,
		PinnedCodec: d.Audio.PinnedCodec,
	}
	degraded.Video = core.ForwardingPlan{
		Kind:                 core.VideoTrack,
		CodecCopy:            core.CodecCopyAny,
		NeedsRepacketization: true,
	}
	return degraded
}
