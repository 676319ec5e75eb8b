package rtc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tevino/abool"

	"github.com/isqad/livelook-bridge/internal/core"
	"github.com/isqad/livelook-bridge/internal/forwarder"
	"github.com/isqad/livelook-bridge/internal/media"
	"github.com/isqad/livelook-bridge/internal/signaling"
	"github.com/isqad/livelook-bridge/internal/telemetry"
)

var (
	ErrNotImplemented   = errors.New("not implemented")
	ErrConnectionClosed = errors.New("connection is closed")
)

type ConnectionParams struct {
	SessionID string
	Compat    core.CompatibilityDecision
	Forwarder *TrackForwarder
	Transport TransportParams

	OnStateChange func(core.SessionState)
	OnReport      func(ForwardReport)
}

// ConnectionManagement owns one peer connection and everything forwarded
// over it. The first teardown wins, later ones are no-ops.
type ConnectionManagement struct {
	id        string
	compat    core.CompatibilityDecision
	forwarder *TrackForwarder
	transport *PCTransport
	gate      *negotiationGate
	logger    zerolog.Logger

	onStateChange func(core.SessionState)
	onReport      func(ForwardReport)

	// canceled on teardown, every forwarding started by the connection runs under it
	ctx    context.Context
	cancel context.CancelFunc

	closing abool.AtomicBool
	done    chan struct{}

	lock    sync.Mutex
	state   core.SessionState
	handles []*forwarder.Handle
	tracks  []*MediaTrack
}

func NewConnectionManagement(params ConnectionParams) (*ConnectionManagement, error) {
	transport, err := NewPCTransport(params.Transport)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	cm := &ConnectionManagement{
		id:            params.SessionID,
		compat:        params.Compat,
		forwarder:     params.Forwarder,
		transport:     transport,
		gate:          newNegotiationGate(),
		logger:        log.With().Str("service", "rtc").Str("session_id", params.SessionID).Logger(),
		onStateChange: params.OnStateChange,
		onReport:      params.OnReport,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		state:         core.SessionCreated,
	}

	pc := transport.PeerConnection()
	pc.OnConnectionStateChange(cm.onConnectionStateChange)
	pc.OnICEConnectionStateChange(cm.onICEConnectionStateChange)
	pc.OnTrack(cm.onTrack)

	return cm, nil
}

func (cm *ConnectionManagement) ID() string {
	return cm.id
}

func (cm *ConnectionManagement) State() core.SessionState {
	cm.lock.Lock()
	defer cm.lock.Unlock()

	return cm.state
}

// Done is closed once teardown has finished
func (cm *ConnectionManagement) Done() <-chan struct{} {
	return cm.done
}

// Transport is the bridge's side of the signaling exchange
func (cm *ConnectionManagement) Transport() signaling.Session {
	return cm.transport
}

// AddTrack adds a sending video and a bidirectional audio media line and
// starts forwarding the source once the next negotiation round completes
func (cm *ConnectionManagement) AddTrack(ctx context.Context, source media.Source) (*MediaTrack, error) {
	intercom, _ := media.TryAsIntercom(source)

	return cm.addTrack(source, intercom, webrtc.RTPTransceiverDirectionSendrecv, nil)
}

// Close of a single connection goes through Teardown
func (cm *ConnectionManagement) Close(ctx context.Context) error {
	return ErrNotImplemented
}

// Negotiate is driven by the signaling bridge instead
func (cm *ConnectionManagement) Negotiate(ctx context.Context) error {
	return ErrNotImplemented
}

// Teardown closes the peer connection and stops every forwarder.
// It doesn't stop the intercom.
func (cm *ConnectionManagement) Teardown() {
	if !cm.closing.SetToIf(false, true) {
		return
	}
	cm.logger.Info().Msg("teardown")

	cm.transition(core.SessionClosing)
	cm.cancel()

	cm.lock.Lock()
	handles := cm.handles
	cm.handles = nil
	cm.lock.Unlock()

	for _, h := range handles {
		h.Kill()
	}
	cm.transport.Close()

	cm.transition(core.SessionClosed)
	close(cm.done)
}

func (cm *ConnectionManagement) addTrack(
	source media.Source,
	intercom media.Intercom,
	audioDirection webrtc.RTPTransceiverDirection,
	endSession func(),
) (*MediaTrack, error) {
	if cm.closing.IsSet() {
		return nil, ErrConnectionClosed
	}

	pc := cm.transport.PeerConnection()
	video, err := newPionTransceiver(pc, core.VideoTrack, videoCapability(), webrtc.RTPTransceiverDirectionSendonly)
	if err != nil {
		return nil, err
	}
	audio, err := newPionTransceiver(pc, core.AudioTrack, audioCapability(), audioDirection)
	if err != nil {
		return nil, err
	}

	if endSession == nil {
		endSession = func() {}
	}
	track := &MediaTrack{
		pc:       pc,
		video:    video,
		audio:    audio,
		intercom: intercom,
		control:  newSessionControl(endSession, cm.done, intercom, audio.BackChannel),
	}

	cm.lock.Lock()
	cm.tracks = append(cm.tracks, track)
	cm.lock.Unlock()

	cm.transition(core.SessionNegotiating)

	go readRTCP(video.transceiver.Sender(), newKeyframeRequests(rtcpPLIInterval, cm.keyframeRequest(source)))
	go readRTCP(audio.transceiver.Sender(), newKeyframeRequests(rtcpPLIInterval, nil))

	timeStart := time.Now()
	negotiated := cm.gate.Wait()
	go func() {
		select {
		case <-negotiated:
			cm.startForwarding(source, video, audio, timeStart)
		case <-cm.done:
		}
	}()

	return track, nil
}

func (cm *ConnectionManagement) startForwarding(source media.Source, video, audio *pionTransceiver, timeStart time.Time) {
	if cm.closing.IsSet() {
		return
	}

	isPrivate, pair := isPrivateTransport(video.transceiver.Sender())
	event := cm.logger.Info().Bool("is_private", isPrivate).Dur("elapsed", time.Since(timeStart))
	if pair != nil {
		event = event.Str("candidate_pair", pair.String())
	}
	event.Msg("connected")

	handle, err := cm.forwarder.Forward(cm.ctx, ForwardParams{
		SessionID: cm.id,
		Source:    source,
		Compat:    cm.compat,
		IsPrivate: isPrivate,
		Video:     video,
		Audio:     audio,
		TimeStart: timeStart,
		OnReport:  cm.onReport,
	})
	if err != nil {
		cm.logger.Error().Err(err).Msg("can't start forwarding")
		telemetry.OperationFailed("forward", "start_failed")
		cm.Teardown()
		return
	}
	telemetry.OperationSucceeded("forward")

	cm.lock.Lock()
	if cm.closing.IsSet() {
		cm.lock.Unlock()
		handle.Kill()
		return
	}
	cm.handles = append(cm.handles, handle)
	cm.lock.Unlock()

	go func() {
		<-handle.Done()
		cm.logger.Info().AnErr("reason", handle.Err()).Msg("forwarder exited")
		cm.Teardown()
	}()
}

func (cm *ConnectionManagement) keyframeRequest(source media.Source) func() {
	requester, ok := media.TryAsKeyframeRequester(source)
	if !ok {
		return func() {
			cm.logger.Debug().Msg("keyframe requested, the source can't produce one")
		}
	}

	return func() {
		if err := requester.RequestKeyframe(cm.ctx); err != nil {
			cm.logger.Warn().Err(err).Msg("keyframe request failed")
		}
	}
}

func (cm *ConnectionManagement) transition(to core.SessionState) {
	cm.lock.Lock()
	from := cm.state
	if !canTransition(from, to) {
		cm.lock.Unlock()
		return
	}
	cm.state = to
	cm.lock.Unlock()

	cm.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("state changed")
	if cm.onStateChange != nil {
		cm.onStateChange(to)
	}
}

func (cm *ConnectionManagement) connected() {
	cm.transition(core.SessionConnected)
	cm.gate.Open()
}

func (cm *ConnectionManagement) onConnectionStateChange(state webrtc.PeerConnectionState) {
	cm.logger.Debug().Str("state", state.String()).Msg("peer connection state")

	switch state {
	case webrtc.PeerConnectionStateConnected:
		telemetry.OperationSucceeded("peer_connection")
		cm.connected()
	case webrtc.PeerConnectionStateFailed:
		telemetry.OperationFailed("peer_connection", "failed")
		cm.transition(core.SessionFailed)
	}

	if !isPeerConnectionAlive(state) {
		cm.Teardown()
	}
}

func (cm *ConnectionManagement) onICEConnectionStateChange(state webrtc.ICEConnectionState) {
	cm.logger.Debug().Str("state", state.String()).Msg("ICE connection state")

	if state == webrtc.ICEConnectionStateFailed {
		telemetry.OperationFailed("ice_connection", "failed")
		cm.transition(core.SessionFailed)
	}

	if !isICEConnectionAlive(state) {
		cm.Teardown()
	}
}

func (cm *ConnectionManagement) onTrack(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	if remote.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}

	cm.lock.Lock()
	defer cm.lock.Unlock()

	for _, track := range cm.tracks {
		if track.audio.receives(receiver) {
			track.audio.setRemote(remote)
			cm.logger.Debug().Str("codec", remote.Codec().MimeType).Msg("client audio received")
			return
		}
	}
}

// MediaTrack is a pair of media lines carrying one source
type MediaTrack struct {
	pc       *webrtc.PeerConnection
	video    *pionTransceiver
	audio    *pionTransceiver
	intercom media.Intercom
	control  *SessionControl
}

func (t *MediaTrack) Control() *SessionControl {
	return t.control
}

func (t *MediaTrack) SetPlayback(ctx context.Context, playback Playback) error {
	return t.control.SetPlayback(ctx, playback)
}

func (t *MediaTrack) Replace(ctx context.Context, source media.Source) error {
	return ErrNotImplemented
}

// Remove stops sending on both media lines and stops the intercom
func (t *MediaTrack) Remove(ctx context.Context) error {
	err := t.video.removeFrom(t.pc)
	if audioErr := t.audio.removeFrom(t.pc); audioErr != nil && err == nil {
		err = audioErr
	}
	if t.intercom != nil {
		if intercomErr := t.intercom.StopIntercom(ctx); intercomErr != nil && err == nil {
			err = intercomErr
		}
	}
	return err
}
