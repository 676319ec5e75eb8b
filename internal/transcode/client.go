package transcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/isqad/livelook-bridge/internal/media"
)

var ErrTranscodeRejected = errors.New("transcode rejected")

// Client starts transcoders on the daemons over NATS. A started
// transcoder is stopped when the context it was started with is done.
type Client struct {
	nc      *nats.Conn
	timeout time.Duration
}

func NewClient(nc *nats.Conn, timeout time.Duration) *Client {
	return &Client{
		nc:      nc,
		timeout: timeout,
	}
}

func (c *Client) StartTranscode(ctx context.Context, stream media.Stream, args media.TranscodeArgs) (*media.TranscodeSession, error) {
	input, err := stream.TranscoderInput(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(StartMessage{
		StreamID: stream.ID(),
		Input:    input,
		Args:     args,
	})
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.nc.RequestWithContext(reqCtx, StartSubject, data)
	if err != nil {
		return nil, fmt.Errorf("request transcode: %w", err)
	}

	reply := &Reply{}
	if err := json.Unmarshal(msg.Data, reply); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrTranscodeRejected, reply.Error)
	}

	go func() {
		<-ctx.Done()
		if err := c.Stop(reply.ID); err != nil {
			log.Warn().Err(err).Str("service", "transcode").Str("id", reply.ID).Msg("can't stop transcoder")
		}
	}()

	return &media.TranscodeSession{ID: reply.ID, Output: reply.Output}, nil
}

func (c *Client) Stop(id string) error {
	data, err := json.Marshal(StopMessage{ID: id})
	if err != nil {
		return err
	}
	return c.nc.Publish(StopSubject, data)
}
