// Package media holds the contracts of the host side collaborators:
// the media source we pull a stream from and the transcoder we may drive.
package media

import (
	"context"
	"errors"

	"github.com/isqad/livelook-bridge/internal/core"
)

var ErrNoStream = errors.New("media source has no stream")

type TrackConstraints struct {
	Codec string `json:"codec"`
}

// Constraints is what we ask the source for
type Constraints struct {
	Video       TrackConstraints     `json:"video"`
	Audio       TrackConstraints     `json:"audio"`
	Destination core.DestinationHint `json:"destination"`
	Tool        core.ToolHint        `json:"tool"`
}

type VideoStreamOptions struct {
	Codec string `json:"codec"`
}

type AudioStreamOptions struct {
	Codec string `json:"codec"`
}

type MediaStreamOptions struct {
	Video *VideoStreamOptions `json:"video,omitempty"`
	// Audio is nil when the source has no audio at all
	Audio              *AudioStreamOptions `json:"audio,omitempty"`
	OobCodecParameters bool                `json:"oobCodecParameters,omitempty"`
}

// TranscoderInput describes a stream the way ffmpeg needs to consume it
type TranscoderInput struct {
	URL                     string             `json:"url"`
	InputArguments          []string           `json:"inputArguments,omitempty"`
	MediaStreamOptions      MediaStreamOptions `json:"mediaStreamOptions"`
	DestinationVideoBitrate int                `json:"destinationVideoBitrate,omitempty"`
	H264EncoderArguments    []string           `json:"h264EncoderArguments,omitempty"`
	H264FilterArguments     []string           `json:"h264FilterArguments,omitempty"`
	VideoDecoderArguments   []string           `json:"videoDecoderArguments,omitempty"`
}

func (i *TranscoderInput) VideoCodec() string {
	if i.MediaStreamOptions.Video == nil {
		return ""
	}
	return i.MediaStreamOptions.Video.Codec
}

func (i *TranscoderInput) AudioCodec() string {
	if i.MediaStreamOptions.Audio == nil {
		return ""
	}
	return i.MediaStreamOptions.Audio.Codec
}

func (i *TranscoderInput) HasAudio() bool {
	return i.MediaStreamOptions.Audio != nil
}

// Stream is a stream handle returned by a Source
type Stream interface {
	ID() string
	TranscoderInput(ctx context.Context) (*TranscoderInput, error)
}

type Source interface {
	RequestMediaStream(ctx context.Context, constraints Constraints) (Stream, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context, constraints Constraints) (Stream, error)

func (f SourceFunc) RequestMediaStream(ctx context.Context, constraints Constraints) (Stream, error) {
	return f(ctx, constraints)
}

type TranscodeArgs struct {
	VideoDecoderArguments   []string `json:"videoDecoderArguments,omitempty"`
	VideoTranscodeArguments []string `json:"videoTranscodeArguments"`
	AudioTranscodeArguments []string `json:"audioTranscodeArguments"`
}

// TranscodeSession is a running transcode. Output describes the
// transcoded stream; it is nil when the transcoder rewrites the source in place.
type TranscodeSession struct {
	ID     string           `json:"id"`
	Output *TranscoderInput `json:"output,omitempty"`
}

type Transcoder interface {
	StartTranscode(ctx context.Context, stream Stream, args TranscodeArgs) (*TranscodeSession, error)
}
