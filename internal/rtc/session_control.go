package rtc

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/isqad/livelook-bridge/internal/media"
)

var ErrNoBackChannel = errors.New("client audio not received yet")

type Playback struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

// SessionControl is handed to whoever drives a bridged session. Enabling
// playback audio starts the intercom with the audio the client sends back.
type SessionControl struct {
	endSession  func()
	done        <-chan struct{}
	intercom    media.Intercom
	backChannel func() (media.BackChannel, bool)

	lock     sync.Mutex
	playback Playback
	talking  bool
}

func newSessionControl(
	endSession func(),
	done <-chan struct{},
	intercom media.Intercom,
	backChannel func() (media.BackChannel, bool),
) *SessionControl {
	return &SessionControl{
		endSession:  endSession,
		done:        done,
		intercom:    intercom,
		backChannel: backChannel,
		playback:    Playback{Audio: false, Video: true},
	}
}

func (c *SessionControl) SetPlayback(ctx context.Context, playback Playback) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.playback = playback
	if c.intercom == nil {
		return nil
	}

	if playback.Audio && !c.talking {
		audio, ok := c.backChannel()
		if !ok {
			return ErrNoBackChannel
		}
		if err := c.intercom.StartIntercom(ctx, audio); err != nil {
			return err
		}
		c.talking = true
		log.Debug().Str("service", "rtc").Str("codec", audio.CodecMimeType()).Msg("intercom started")
	} else if !playback.Audio && c.talking {
		c.talking = false
		if err := c.intercom.StopIntercom(ctx); err != nil {
			return err
		}
		log.Debug().Str("service", "rtc").Msg("intercom stopped")
	}

	return nil
}

func (c *SessionControl) Playback() Playback {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.playback
}

// Done is closed once the session is torn down
func (c *SessionControl) Done() <-chan struct{} {
	return c.done
}

func (c *SessionControl) EndSession() {
	if c.endSession != nil {
		c.endSession()
	}
}
