package rtc

import (
	"context"
	"testing"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isqad/livelook-bridge/internal/media"
)

type fakeIntercom struct {
	started int
	stopped int
	audio   media.BackChannel
}

func (i *fakeIntercom) StartIntercom(ctx context.Context, audio media.BackChannel) error {
	i.started++
	i.audio = audio
	return nil
}

func (i *fakeIntercom) StopIntercom(ctx context.Context) error {
	i.stopped++
	return nil
}

type fakeBackChannel struct{}

func (fakeBackChannel) ReadRTP() (*rtp.Packet, error) { return &rtp.Packet{}, nil }

func (fakeBackChannel) CodecMimeType() string { return webrtc.MimeTypeOpus }

func TestSessionControlIntercom(t *testing.T) {
	intercom := &fakeIntercom{}
	received := false
	control := newSessionControl(nil, nil, intercom, func() (media.BackChannel, bool) {
		if !received {
			return nil, false
		}
		return fakeBackChannel{}, true
	})
	ctx := context.Background()

	assert.ErrorIs(t, control.SetPlayback(ctx, Playback{Audio: true, Video: true}), ErrNoBackChannel)
	assert.Equal(t, 0, intercom.started)

	received = true
	require.Nil(t, control.SetPlayback(ctx, Playback{Audio: true, Video: true}))
	require.Nil(t, control.SetPlayback(ctx, Playback{Audio: true, Video: false}))
	assert.Equal(t, 1, intercom.started)
	assert.Equal(t, webrtc.MimeTypeOpus, intercom.audio.CodecMimeType())
	assert.Equal(t, Playback{Audio: true}, control.Playback())

	require.Nil(t, control.SetPlayback(ctx, Playback{Video: true}))
	require.Nil(t, control.SetPlayback(ctx, Playback{Video: true}))
	assert.Equal(t, 1, intercom.stopped)
}

func TestSessionControlWithoutIntercom(t *testing.T) {
	done := make(chan struct{})
	ended := 0
	control := newSessionControl(func() { ended++ }, done, nil, nil)

	assert.Nil(t, control.SetPlayback(context.Background(), Playback{Audio: true}))
	assert.Equal(t, Playback{Audio: true}, control.Playback())

	control.EndSession()
	assert.Equal(t, 1, ended)
	assert.False(t, isClosed(control.Done()))
	close(done)
	assert.True(t, isClosed(control.Done()))
}
