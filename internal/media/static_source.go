package media

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/isqad/livelook-bridge/internal/config"
	"github.com/isqad/livelook-bridge/internal/core"
)

var ErrSourceNotConfigured = errors.New("media source url is not configured")

// StaticSource serves one configured camera. The destination hint picks
// between the configured stream variants.
type StaticSource struct {
	conf config.SourceConfig
}

func NewStaticSource(conf config.SourceConfig) *StaticSource {
	return &StaticSource{conf: conf}
}

func (s *StaticSource) RequestMediaStream(ctx context.Context, constraints Constraints) (Stream, error) {
	if s.conf.URL == "" {
		return nil, ErrSourceNotConfigured
	}

	url := s.conf.URL
	switch constraints.Destination {
	case core.DestinationRemote:
		if s.conf.RemoteURL != "" {
			url = s.conf.RemoteURL
		}
	case core.DestinationMediumResolution:
		if s.conf.MediumResURL != "" {
			url = s.conf.MediumResURL
		}
	}

	log.Debug().Str("service", "media").Str("destination", string(constraints.Destination)).Str("tool", string(constraints.Tool)).Str("url", url).Msg("request media stream")

	input := &TranscoderInput{
		URL:                     url,
		InputArguments:          append([]string(nil), s.conf.InputArguments...),
		DestinationVideoBitrate: s.conf.Bitrate,
		MediaStreamOptions: MediaStreamOptions{
			Video:              &VideoStreamOptions{Codec: s.conf.VideoCodec},
			OobCodecParameters: s.conf.OobParameters,
		},
	}
	if s.conf.AudioCodec != "" {
		input.MediaStreamOptions.Audio = &AudioStreamOptions{Codec: s.conf.AudioCodec}
	}

	return &staticStream{id: url, input: input}, nil
}

type staticStream struct {
	id    string
	input *TranscoderInput
}

func (s *staticStream) ID() string {
	return s.id
}

func (s *staticStream) TranscoderInput(ctx context.Context) (*TranscoderInput, error) {
	copied := *s.input
	return &copied, nil
}
