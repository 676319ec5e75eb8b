package rtc

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog/log"

	"github.com/isqad/livelook-bridge/internal/config"
	"github.com/isqad/livelook-bridge/internal/core"
	"github.com/isqad/livelook-bridge/internal/signaling"
)

const (
	rtcpPLIInterval            = time.Second * 3
	dtlsRetransmissionInterval = 100 * time.Millisecond
	mtu                        = 1400
	iceDisconnectedTimeout     = 10 * time.Second // compatible for ice-lite with firefox client
	iceFailedTimeout           = 25 * time.Second // pion's default
	iceKeepaliveInterval       = 2 * time.Second  // pion's default
)

// PCTransport is the bridge's own side of the signaling exchange.
// Candidates received before the remote description are queued.
type PCTransport struct {
	pc *webrtc.PeerConnection
	me *webrtc.MediaEngine

	lock              sync.Mutex
	pendingCandidates deque.Deque
}

type TransportParams struct {
	EnabledCodecs []config.CodecSpec
	Config        *config.WebRTCConfig
}

func NewPCTransport(params TransportParams) (*PCTransport, error) {
	pc, me, err := newPeerConnection(params)
	if err != nil {
		return nil, err
	}

	t := &PCTransport{
		pc: pc,
		me: me,
	}

	t.pc.OnICEGatheringStateChange(func(state webrtc.ICEGathererState) {
		if state == webrtc.ICEGathererStateComplete {
			log.Debug().Str("service", "transport").Msg("ICE gathering complete")
		}
	})

	return t, nil
}

func newPeerConnection(params TransportParams) (*webrtc.PeerConnection, *webrtc.MediaEngine, error) {
	log.Debug().Str("service", "transport").Msg("create new peer connection")

	me, err := createMediaEngine(params.EnabledCodecs, params.Config.Publisher)
	if err != nil {
		return nil, nil, err
	}

	// Create a InterceptorRegistry. This is the user configurable RTP/RTCP Pipeline.
	// This provides NACKs, RTCP Reports and other features. You MUST create
	// a InterceptorRegistry for each PeerConnection.
	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, i); err != nil {
		return nil, nil, err
	}

	se := params.Config.SettingEngine
	se.DisableMediaEngineCopy(true)
	se.SetDTLSRetransmissionInterval(dtlsRetransmissionInterval)
	se.SetReceiveMTU(mtu)
	se.SetICETimeouts(iceDisconnectedTimeout, iceFailedTimeout, iceKeepaliveInterval)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithSettingEngine(se),
		webrtc.WithInterceptorRegistry(i),
	)

	pc, err := api.NewPeerConnection(params.Config.Configuration)

	return pc, me, err
}

func (t *PCTransport) PeerConnection() *webrtc.PeerConnection {
	return t.pc
}

// Options of the bridge side are empty, it decodes nothing
func (t *PCTransport) Options(ctx context.Context) (*core.SignalingOptions, error) {
	return &core.SignalingOptions{}, nil
}

// CreateLocalDescription creates an offer or answer. Directions of setup
// are already applied by the transceivers.
func (t *PCTransport) CreateLocalDescription(
	ctx context.Context,
	typ webrtc.SDPType,
	setup signaling.Setup,
	onCandidate func(webrtc.ICECandidateInit),
) (webrtc.SessionDescription, error) {
	t.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		onCandidate(candidate.ToJSON())
	})

	var (
		desc webrtc.SessionDescription
		err  error
	)
	if typ == webrtc.SDPTypeOffer {
		desc, err = t.pc.CreateOffer(nil)
	} else {
		desc, err = t.pc.CreateAnswer(nil)
	}
	if err != nil {
		return webrtc.SessionDescription{}, err
	}

	if err := t.pc.SetLocalDescription(desc); err != nil {
		return webrtc.SessionDescription{}, err
	}

	return *t.pc.LocalDescription(), nil
}

func (t *PCTransport) AddICECandidate(ctx context.Context, candidate webrtc.ICECandidateInit) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.pc.RemoteDescription() != nil {
		return t.pc.AddICECandidate(candidate)
	}

	t.pendingCandidates.PushBack(candidate)

	return nil
}

func (t *PCTransport) SetRemoteDescription(ctx context.Context, desc webrtc.SessionDescription, setup signaling.Setup) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if err := t.pc.SetRemoteDescription(desc); err != nil {
		return err
	}

	for t.pendingCandidates.Len() > 0 {
		candidate := t.pendingCandidates.PopFront().(webrtc.ICECandidateInit)
		if err := t.pc.AddICECandidate(candidate); err != nil {
			log.Warn().Err(err).Str("service", "transport").Msg("can't add pending ICE candidate")
		}
	}

	return nil
}

func (t *PCTransport) Close() {
	if err := t.pc.Close(); err != nil {
		log.Debug().Err(err).Str("service", "transport").Msg("close peer connection")
	}
}
