package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"

	"github.com/isqad/livelook-bridge/internal/core"
	"github.com/isqad/livelook-bridge/internal/eventbus/rpc"
)

var (
	ErrSessionEnded  = errors.New("session ended by the bridge")
	errNoConnection  = errors.New("no peer connection")
	errUnexpectedRpc = errors.New("unexpected rpc")
)

// Options is what the probe tells the bridge about itself on join
type Options struct {
	HighProfile bool
	ScreenWidth int
}

func (o Options) signalingOptions() *core.SignalingOptions {
	profile := "profile-level-id=42e01f"
	if o.HighProfile {
		profile = "profile-level-id=64001f"
	}

	options := &core.SignalingOptions{
		Capabilities: &core.Capabilities{
			Video: []core.CodecCapability{
				{MimeType: webrtc.MimeTypeH264, ClockRate: 90000, SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;" + profile},
			},
			Audio: []core.CodecCapability{
				{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			},
		},
		UserAgent: "livelook-probe",
	}
	if o.ScreenWidth > 0 {
		options.Screen = &core.Screen{Width: o.ScreenWidth}
	}
	return options
}

// Stats is counted over the whole session
type Stats struct {
	Tracks  int
	Packets int
	Bytes   int
}

// Probe is a viewer which joins the bridge through the websocket gateway
// and counts the media it receives
type Probe struct {
	url     string
	options Options
	dialer  *websocket.Dialer

	conn      *websocket.Conn
	writeLock sync.Mutex

	peerConnection *webrtc.PeerConnection

	lock              sync.Mutex
	pendingCandidates []webrtc.ICECandidateInit
	stats             Stats
}

func New(url string, options Options) (*Probe, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	probe := &Probe{
		url:     url,
		options: options,
		dialer: &websocket.Dialer{
			Jar:              jar,
			HandshakeTimeout: 45 * time.Second,
		},
	}

	return probe, nil
}

func (p *Probe) Stats() Stats {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.stats
}

func (p *Probe) Close() {
	if p.peerConnection != nil {
		p.peerConnection.Close()
	}

	if p.conn != nil {
		p.conn.Close()
	}
}

// Run joins the bridge and serves the session until the bridge ends it
// or ctx is done
func (p *Probe) Run(ctx context.Context) error {
	defer p.Close()

	c, resp, err := p.dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	p.conn = c

	if err := p.send(rpc.NewJoinRpc(p.options.signalingOptions())); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		for {
			if err := p.readRPC(); err != nil {
				done <- err
				return
			}
		}
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		log.Info().Str("service", "probe").Msg("interrupt")

		// Cleanly close the connection by sending a close message and then
		// waiting (with timeout) for the server to close the connection.
		p.writeLock.Lock()
		err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		p.writeLock.Unlock()
		if err != nil {
			return err
		}

		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return nil
	}
}

func (p *Probe) send(r rpc.Rpc) error {
	message, err := r.ToJSON()
	if err != nil {
		return err
	}

	p.writeLock.Lock()
	defer p.writeLock.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, message)
}

func (p *Probe) readRPC() error {
	_, message, err := p.conn.ReadMessage()
	if err != nil {
		return err
	}

	r, err := rpc.RpcFromReader(bytes.NewReader(message))
	if err != nil {
		return err
	}

	log.Debug().Str("service", "probe").Str("method", string(r.GetMethod())).Msg("received rpc")

	switch msg := r.(type) {
	case *rpc.CreateOfferRpc:
		return p.createOffer(msg.Params)
	case *rpc.SDPRpc:
		if msg.Params.Type != webrtc.SDPTypeAnswer {
			return fmt.Errorf("%w: %s", errUnexpectedRpc, msg.Params.Type)
		}
		return p.setRemoteDescription(msg.Params)
	case *rpc.ICECandidateRpc:
		return p.addICECandidate(msg.Params)
	case *rpc.SessionEndedRpc:
		log.Info().Str("service", "probe").Str("session_id", msg.Params.SessionID).Interface("stats", p.Stats()).Msg("session ended")
		return ErrSessionEnded
	default:
		log.Warn().Str("service", "probe").Str("method", string(r.GetMethod())).Msg("unknown type")
	}

	return nil
}

func (p *Probe) createOffer(params rpc.CreateOfferParams) error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: params.ICEServers})
	if err != nil {
		return err
	}
	p.peerConnection = pc

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		if err := p.send(rpc.NewICECandidateRpc(candidate.ToJSON())); err != nil {
			log.Error().Err(err).Str("service", "probe").Msg("send ICE candidate")
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("service", "probe").Str("state", s.String()).Msg("peer connection state has changed")
	})
	pc.OnTrack(p.onTrack)

	audio := webrtc.NewRTPTransceiverDirection(params.Audio)
	video := webrtc.NewRTPTransceiverDirection(params.Video)
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{Direction: audio}); err != nil {
		return err
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{Direction: video}); err != nil {
		return err
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return err
	}

	return p.send(rpc.NewSDPOfferRpc(offer))
}

func (p *Probe) onTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	log.Info().Str("service", "probe").Str("codec", track.Codec().MimeType).Msg("track received")

	p.lock.Lock()
	p.stats.Tracks++
	p.lock.Unlock()

	buf := make([]byte, 1500)
	for {
		n, _, err := track.Read(buf)
		if err != nil {
			return
		}

		p.lock.Lock()
		p.stats.Packets++
		p.stats.Bytes += n
		p.lock.Unlock()
	}
}

func (p *Probe) addICECandidate(candidate webrtc.ICECandidateInit) error {
	if p.peerConnection == nil {
		return errNoConnection
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if p.peerConnection.RemoteDescription() != nil {
		return p.peerConnection.AddICECandidate(candidate)
	}
	p.pendingCandidates = append(p.pendingCandidates, candidate)

	return nil
}

func (p *Probe) setRemoteDescription(sdp webrtc.SessionDescription) error {
	if p.peerConnection == nil {
		return errNoConnection
	}
	if err := p.peerConnection.SetRemoteDescription(sdp); err != nil {
		return err
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	for _, candidate := range p.pendingCandidates {
		if err := p.peerConnection.AddICECandidate(candidate); err != nil {
			return err
		}
	}
	p.pendingCandidates = nil

	return nil
}
