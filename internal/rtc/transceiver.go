package rtc

import (
	"errors"
	"strings"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"

	"github.com/isqad/livelook-bridge/internal/core"
	"github.com/isqad/livelook-bridge/internal/media"
)

const streamID = "livelook"

var ErrCodecNotNegotiated = errors.New("codec not negotiated")

// Transceiver is the sending half of one media line. It references the
// pion transceiver, the peer connection owns it.
type Transceiver interface {
	Kind() core.TrackKind
	// Write sends a marshaled RTP packet
	Write(buf []byte) (int, error)
	WriteRTP(p *rtp.Packet) error
	// Codecs lists negotiated mime types
	Codecs() []string
	// SenderCodec is the mime type of the local track, packets go out as it
	SenderCodec() string
	PinCodec(mimeType string) error
}

type pionTransceiver struct {
	kind        core.TrackKind
	transceiver *webrtc.RTPTransceiver

	lock   sync.RWMutex
	track  *webrtc.TrackLocalStaticRTP
	remote *webrtc.TrackRemote
}

func newPionTransceiver(
	pc *webrtc.PeerConnection,
	kind core.TrackKind,
	capability webrtc.RTPCodecCapability,
	direction webrtc.RTPTransceiverDirection,
) (*pionTransceiver, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(capability, string(kind), streamID)
	if err != nil {
		return nil, err
	}

	transceiver, err := pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{Direction: direction})
	if err != nil {
		return nil, err
	}

	return &pionTransceiver{
		kind:        kind,
		transceiver: transceiver,
		track:       track,
	}, nil
}

func (t *pionTransceiver) Kind() core.TrackKind {
	return t.kind
}

func (t *pionTransceiver) current() *webrtc.TrackLocalStaticRTP {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return t.track
}

func (t *pionTransceiver) Write(buf []byte) (int, error) {
	return t.current().Write(buf)
}

func (t *pionTransceiver) WriteRTP(p *rtp.Packet) error {
	return t.current().WriteRTP(p)
}

func (t *pionTransceiver) Codecs() []string {
	sender := t.transceiver.Sender()
	if sender == nil {
		return nil
	}

	params := sender.GetParameters()
	mimes := make([]string, 0, len(params.Codecs))
	for _, codec := range params.Codecs {
		mimes = append(mimes, codec.MimeType)
	}
	return mimes
}

func (t *pionTransceiver) SenderCodec() string {
	return t.current().Codec().MimeType
}

// PinCodec swaps the local track for one of the given codec. It only
// works once the codec has been negotiated for this media line.
func (t *pionTransceiver) PinCodec(mimeType string) error {
	if !containsMime(t.Codecs(), mimeType) {
		return ErrCodecNotNegotiated
	}
	if strings.EqualFold(t.current().Codec().MimeType, mimeType) {
		return nil
	}

	track, err := webrtc.NewTrackLocalStaticRTP(narrowbandCapability(mimeType), string(t.kind), streamID)
	if err != nil {
		return err
	}
	if err := t.transceiver.Sender().ReplaceTrack(track); err != nil {
		return err
	}

	t.lock.Lock()
	t.track = track
	t.lock.Unlock()

	return nil
}

func (t *pionTransceiver) receives(receiver *webrtc.RTPReceiver) bool {
	return receiver != nil && t.transceiver.Receiver() == receiver
}

func (t *pionTransceiver) setRemote(track *webrtc.TrackRemote) {
	t.lock.Lock()
	t.remote = track
	t.lock.Unlock()
}

// BackChannel is the audio the client sends on this media line, if any
func (t *pionTransceiver) BackChannel() (media.BackChannel, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if t.remote == nil {
		return nil, false
	}
	return remoteTrack{t.remote}, true
}

// removeFrom stops sending on the media line
func (t *pionTransceiver) removeFrom(pc *webrtc.PeerConnection) error {
	sender := t.transceiver.Sender()
	if sender == nil {
		return nil
	}
	return pc.RemoveTrack(sender)
}

func narrowbandCapability(mimeType string) webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{
		MimeType:  mimeType,
		ClockRate: 8000,
		Channels:  1,
	}
}

type remoteTrack struct {
	track *webrtc.TrackRemote
}

func (r remoteTrack) ReadRTP() (*rtp.Packet, error) {
	p, _, err := r.track.ReadRTP()
	return p, err
}

func (r remoteTrack) CodecMimeType() string {
	return r.track.Codec().MimeType
}
