package rtc

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/sdp/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/isqad/livelook-bridge/internal/core"
	"github.com/isqad/livelook-bridge/internal/forwarder"
	"github.com/isqad/livelook-bridge/internal/media"
	"github.com/isqad/livelook-bridge/internal/telemetry"
)

var ErrNoVideoTransceiver = errors.New("video transceiver is required")

// ForwarderStarter runs the process that delivers the stream tracks as RTP
type ForwarderStarter interface {
	Start(ctx context.Context, input *media.TranscoderInput, tracks forwarder.Tracks) (*forwarder.Handle, error)
}

// ForwardReport tells what was actually set up for a session
type ForwardReport struct {
	Destination core.DestinationHint
	Tool        core.ToolHint
	Decision    ForwardingDecision
}

type ForwardParams struct {
	SessionID string
	Source    media.Source
	Compat    core.CompatibilityDecision
	IsPrivate bool
	Video     Transceiver
	// Audio is optional
	Audio     Transceiver
	TimeStart time.Time

	OnReport func(ForwardReport)
}

type TrackForwarder struct {
	transcoder media.Transcoder
	starter    ForwarderStarter

	maxCompatibilityMode bool
	videoPacketSize      int
}

type TrackForwarderParams struct {
	// Transcoder may be nil, transcoding then always falls back to copy
	Transcoder           media.Transcoder
	Starter              ForwarderStarter
	MaxCompatibilityMode bool
	VideoPacketSize      int
}

func NewTrackForwarder(params TrackForwarderParams) *TrackForwarder {
	return &TrackForwarder{
		transcoder:           params.Transcoder,
		starter:              params.Starter,
		maxCompatibilityMode: params.MaxCompatibilityMode,
		videoPacketSize:      params.VideoPacketSize,
	}
}

// Forward starts forwarding the source to the transceivers. Done of the
// returned handle means the whole session has to be torn down.
func (f *TrackForwarder) Forward(ctx context.Context, params ForwardParams) (*forwarder.Handle, error) {
	if params.Video == nil {
		return nil, ErrNoVideoTransceiver
	}
	if params.Source == nil {
		return nil, media.ErrNoStream
	}
	if params.TimeStart.IsZero() {
		params.TimeStart = time.Now()
	}
	logger := log.With().Str("service", "rtc").Str("session_id", params.SessionID).Logger()

	destination, tool := RequestHints(params.Compat, f.maxCompatibilityMode, params.IsPrivate)
	stream, err := params.Source.RequestMediaStream(ctx, media.Constraints{
		Video:       media.TrackConstraints{Codec: sourceCodecH264},
		Audio:       media.TrackConstraints{Codec: sourceCodecOpus},
		Destination: destination,
		Tool:        tool,
	})
	if err != nil {
		return nil, err
	}

	input, err := stream.TranscoderInput(ctx)
	if err != nil {
		return nil, err
	}

	var audioCodecs []string
	var audioSender string
	if params.Audio != nil {
		audioCodecs = params.Audio.Codecs()
		audioSender = params.Audio.SenderCodec()
	}

	in := DecisionInput{
		SourceAudioCodec:     input.AudioCodec(),
		SourceVideoCodec:     input.VideoCodec(),
		OobCodecParameters:   input.MediaStreamOptions.OobCodecParameters,
		SourceBitrate:        input.DestinationVideoBitrate,
		EncoderArguments:     input.H264EncoderArguments,
		FilterArguments:      input.H264FilterArguments,
		Compat:               params.Compat,
		MaxCompatibilityMode: f.maxCompatibilityMode,
		IsPrivate:            params.IsPrivate,
		AudioCodecs:          audioCodecs,
		AudioSender:          audioSender,
	}
	decision := Decide(in)

	if pinned := decision.Audio.PinnedCodec; pinned != "" && params.Audio != nil {
		if err := params.Audio.PinCodec(pinned); err != nil {
			logger.Warn().Err(err).Str("codec", pinned).Msg("can't pin audio codec, keep sender default")
			in.AudioCodecs = nil
			decision.Audio = decideAudio(in)
		}
	}

	forwardInput := input
	if decision.Transcode {
		decision, forwardInput = f.transcode(ctx, logger, stream, input, decision)
	}

	logger.Info().
		Str("destination", string(destination)).
		Str("tool", string(tool)).
		Bool("transcode", decision.Transcode).
		Str("video_copy", decision.Video.CodecCopy).
		Str("audio_copy", decision.Audio.CodecCopy).
		Bool("repacketize", decision.Video.NeedsRepacketization).
		Str("fallback", string(decision.Fallback)).
		Msg("forwarding plan")

	if params.OnReport != nil {
		params.OnReport(ForwardReport{Destination: destination, Tool: tool, Decision: decision})
	}

	tracks := forwarder.Tracks{
		Video: f.videoTrack(logger, decision.Video, params),
	}
	if forwardInput.HasAudio() && params.Audio != nil {
		tracks.Audio = f.audioTrack(logger, decision.Audio, params)
	}

	return f.starter.Start(ctx, forwardInput, tracks)
}

// transcode starts the transcoder. Whatever happens the forwarder then
// copies: either the transcoder output or, on failure, the source as is.
func (f *TrackForwarder) transcode(
	ctx context.Context,
	logger zerolog.Logger,
	stream media.Stream,
	input *media.TranscoderInput,
	decision ForwardingDecision,
) (ForwardingDecision, *media.TranscoderInput) {
	if f.transcoder == nil {
		return f.fallback(logger, decision, core.FallbackTranscoderNoProvider, nil), input
	}

	session, err := f.transcoder.StartTranscode(ctx, stream, media.TranscodeArgs{
		VideoDecoderArguments:   input.VideoDecoderArguments,
		VideoTranscodeArguments: decision.Video.EncoderArguments,
		AudioTranscodeArguments: decision.Audio.EncoderArguments,
	})
	if err != nil {
		reason := core.FallbackTranscoderStart
		if ctx.Err() != nil {
			reason = core.FallbackTranscoderStartCtx
		}
		return f.fallback(logger, decision, reason, err), input
	}

	logger.Info().Str("transcode_id", session.ID).Msg("transcoder started")
	telemetry.OperationSucceeded("start_transcode")

	if session.Output != nil {
		input = session.Output
	}
	return decision.Degrade(core.FallbackNone), input
}

func (f *TrackForwarder) fallback(
	logger zerolog.Logger,
	decision ForwardingDecision,
	reason core.FallbackReason,
	err error,
) ForwardingDecision {
	logger.Warn().Err(err).Str("reason", string(reason)).Msg("transcoder not started, fall back to copy")
	telemetry.FallbackRecorded(string(reason))
	if err != nil {
		telemetry.OperationFailed("start_transcode", string(reason))
	}
	return decision.Degrade(reason)
}

func (f *TrackForwarder) videoTrack(logger zerolog.Logger, plan core.ForwardingPlan, params ForwardParams) *forwarder.RtpTrack {
	track := &forwarder.RtpTrack{
		CodecCopy:        plan.CodecCopy,
		EncoderArguments: plan.EncoderArguments,
		PacketSize:       f.videoPacketSize,
		FirstPacket:      firstPacketLogger(logger, core.VideoTrack, params.TimeStart),
	}

	packets := telemetry.PacketsCounter(string(core.VideoTrack))
	if !plan.NeedsRepacketization {
		track.OnRtp = directSink(logger, params.Video, packets)
		return track
	}

	sink := &repacketizingSink{
		logger:     logger,
		out:        params.Video,
		packetSize: f.videoPacketSize,
		packets:    packets,
	}
	track.OnMSection = sink.onMediaSection
	track.OnRtp = sink.onRtp

	return track
}

func (f *TrackForwarder) audioTrack(logger zerolog.Logger, plan core.ForwardingPlan, params ForwardParams) *forwarder.RtpTrack {
	return &forwarder.RtpTrack{
		CodecCopy:        plan.CodecCopy,
		EncoderArguments: plan.EncoderArguments,
		FirstPacket:      firstPacketLogger(logger, core.AudioTrack, params.TimeStart),
		OnRtp:            directSink(logger, params.Audio, telemetry.PacketsCounter(string(core.AudioTrack))),
	}
}

func firstPacketLogger(logger zerolog.Logger, kind core.TrackKind, start time.Time) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			elapsed := time.Since(start)
			logger.Info().Str("kind", string(kind)).Dur("elapsed", elapsed).Msg("received first packet")
			telemetry.FirstPacket(elapsed)
		})
	}
}

func directSink(logger zerolog.Logger, out Transceiver, packets prometheus.Counter) func([]byte) {
	return func(buf []byte) {
		if _, err := out.Write(buf); err != nil {
			logWriteError(logger, out.Kind(), err)
			return
		}
		packets.Inc()
	}
}

// repacketizingSink builds its repacketizer on the first packet out of
// the latest parameter sets announced by the forwarder
type repacketizingSink struct {
	logger     zerolog.Logger
	out        Transceiver
	packetSize int
	packets    prometheus.Counter

	lock   sync.Mutex
	params ParameterSets

	repacketizer *H264Repacketizer
	packet       rtp.Packet
}

func (s *repacketizingSink) onMediaSection(section *sdp.MediaDescription) {
	params := ParameterSetsFromMediaSection(section)
	if !params.Complete() {
		return
	}

	s.lock.Lock()
	s.params = params
	s.lock.Unlock()
}

func (s *repacketizingSink) onRtp(buf []byte) {
	if err := s.packet.Unmarshal(buf); err != nil {
		s.logger.Debug().Err(err).Msg("drop malformed rtp packet")
		return
	}

	if s.repacketizer == nil {
		s.lock.Lock()
		params := s.params
		s.lock.Unlock()

		s.repacketizer = NewH264Repacketizer(s.packetSize, params)
	}

	for _, p := range s.repacketizer.Repacketize(&s.packet) {
		if err := s.out.WriteRTP(p); err != nil {
			logWriteError(s.logger, s.out.Kind(), err)
			return
		}
		s.packets.Inc()
	}
}

func logWriteError(logger zerolog.Logger, kind core.TrackKind, err error) {
	// the peer connection is gone, the session teardown follows
	if errors.Is(err, io.ErrClosedPipe) {
		return
	}
	logger.Debug().Err(err).Str("kind", string(kind)).Msg("can't write rtp packet")
}
