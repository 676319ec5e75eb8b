package media

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isqad/livelook-bridge/internal/config"
	"github.com/isqad/livelook-bridge/internal/core"
)

func TestStaticSourceDestinations(t *testing.T) {
	source := NewStaticSource(config.SourceConfig{
		URL:          "rtsp://camera/main",
		RemoteURL:    "rtsp://camera/remote",
		MediumResURL: "rtsp://camera/sub",
		VideoCodec:   "h264",
		Bitrate:      2000000,
	})

	cases := map[core.DestinationHint]string{
		core.DestinationLocal:            "rtsp://camera/main",
		core.DestinationRemote:           "rtsp://camera/remote",
		core.DestinationMediumResolution: "rtsp://camera/sub",
	}

	for destination, url := range cases {
		stream, err := source.RequestMediaStream(context.Background(), Constraints{Destination: destination})
		require.Nil(t, err)

		input, err := stream.TranscoderInput(context.Background())
		require.Nil(t, err)
		assert.Equal(t, url, input.URL)
		assert.Equal(t, "h264", input.VideoCodec())
		assert.Equal(t, 2000000, input.DestinationVideoBitrate)
		assert.False(t, input.HasAudio())
	}
}

func TestStaticSourceNotConfigured(t *testing.T) {
	_, err := NewStaticSource(config.SourceConfig{}).RequestMediaStream(context.Background(), Constraints{})
	assert.ErrorIs(t, err, ErrSourceNotConfigured)
}

type intercomSource struct {
	StaticSource
	started bool
}

func (s *intercomSource) StartIntercom(ctx context.Context, audio BackChannel) error {
	s.started = true
	return nil
}

func (s *intercomSource) StopIntercom(ctx context.Context) error {
	s.started = false
	return nil
}

func TestTryAsIntercom(t *testing.T) {
	_, ok := TryAsIntercom(NewStaticSource(config.SourceConfig{}))
	assert.False(t, ok)

	_, ok = TryAsIntercom(nil)
	assert.False(t, ok)

	intercom, ok := TryAsIntercom(&intercomSource{})
	assert.True(t, ok)
	assert.Nil(t, intercom.StartIntercom(context.Background(), nil))
}
