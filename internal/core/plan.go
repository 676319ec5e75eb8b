package core

type TrackKind string

const (
	AudioTrack TrackKind = "audio"
	VideoTrack TrackKind = "video"
)

// DestinationHint tells the media source which variant of the stream we want
type DestinationHint string

const (
	DestinationLocal            DestinationHint = "local"
	DestinationMediumResolution DestinationHint = "medium-resolution"
	DestinationRemote           DestinationHint = "remote"
)

// ToolHint names the party that has to produce the final bitstream
type ToolHint string

const (
	ToolTranscoder  ToolHint = "transcoder"
	ToolPassthrough ToolHint = "passthrough"
)

// FallbackReason is recorded whenever a planned transcode did not happen
type FallbackReason string

const (
	FallbackNone                 FallbackReason = ""
	FallbackTranscoderStart      FallbackReason = "transcoder_start_failed"
	FallbackTranscoderStartCtx   FallbackReason = "transcoder_start_canceled"
	FallbackTranscoderNoProvider FallbackReason = "transcoder_unavailable"
)

// CodecCopyAny means the track is forwarded as is whatever its codec is
const CodecCopyAny = "copy"

// ForwardingPlan describes how a single track reaches its transceiver.
// Plans are values: a changed plan is a new plan.
type ForwardingPlan struct {
	Kind                 TrackKind
	CodecCopy            string
	EncoderArguments     []string
	NeedsRepacketization bool
	// PinnedCodec is the mime type the audio sender has to be switched to, if any
	PinnedCodec          string
}

func (p ForwardingPlan) IsCopy() bool {
	return p.CodecCopy != ""
}
