package media

import (
	"context"

	"github.com/pion/rtp"
)

// BackChannel yields audio packets received from the client
type BackChannel interface {
	ReadRTP() (*rtp.Packet, error)
	CodecMimeType() string
}

// Intercom is a source able to play audio sent back by the client
type Intercom interface {
	StartIntercom(ctx context.Context, audio BackChannel) error
	StopIntercom(ctx context.Context) error
}

// TryAsIntercom reports whether the source also accepts a back channel
func TryAsIntercom(source interface{}) (Intercom, bool) {
	if source == nil {
		return nil, false
	}
	intercom, ok := source.(Intercom)
	return intercom, ok
}

// KeyframeRequester is a source able to emit a keyframe on demand
type KeyframeRequester interface {
	RequestKeyframe(ctx context.Context) error
}

func TryAsKeyframeRequester(source interface{}) (KeyframeRequester, bool) {
	if source == nil {
		return nil, false
	}
	requester, ok := source.(KeyframeRequester)
	return requester, ok
}
