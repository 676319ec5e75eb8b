package rtc

import (
	"context"

	"github.com/pion/webrtc/v3"

	"github.com/isqad/livelook-bridge/internal/core"
	"github.com/isqad/livelook-bridge/internal/media"
	"github.com/isqad/livelook-bridge/internal/signaling"
	"github.com/isqad/livelook-bridge/internal/telemetry"
)

type SinkParams struct {
	SessionID string
	// Client is the remote party, it creates the offer
	Client     signaling.Session
	Source     media.Source
	Forwarder  *TrackForwarder
	Transport  TransportParams
	ICEServers []webrtc.ICEServer

	OnStateChange func(core.SessionState)
	OnReport      func(ForwardReport)
}

// CreatePeerConnectionSink bridges the source to the signaling client.
// Signaling runs in the background, a failed exchange tears the session
// down and closes Done of the returned control.
func CreatePeerConnectionSink(ctx context.Context, params SinkParams) (*SessionControl, error) {
	options, err := params.Client.Options(ctx)
	if err != nil {
		return nil, err
	}
	compat := AnalyzeOptions(options)

	intercom, hasIntercom := media.TryAsIntercom(params.Source)
	cameraAudio := webrtc.RTPTransceiverDirectionSendonly
	clientAudio := webrtc.RTPTransceiverDirectionRecvonly
	if hasIntercom {
		cameraAudio = webrtc.RTPTransceiverDirectionSendrecv
		clientAudio = webrtc.RTPTransceiverDirectionSendrecv
	}

	cm, err := NewConnectionManagement(ConnectionParams{
		SessionID:     params.SessionID,
		Compat:        compat,
		Forwarder:     params.Forwarder,
		Transport:     params.Transport,
		OnStateChange: params.OnStateChange,
		OnReport:      params.OnReport,
	})
	if err != nil {
		return nil, err
	}

	track, err := cm.addTrack(params.Source, intercom, cameraAudio, cm.Teardown)
	if err != nil {
		cm.Teardown()
		return nil, err
	}

	clientSetup := signaling.NewSetup(clientAudio, webrtc.RTPTransceiverDirectionRecvonly, params.ICEServers)
	localSetup := signaling.NewSetup(cameraAudio, webrtc.RTPTransceiverDirectionSendonly, params.ICEServers)

	cm.logger.Info().
		Bool("high_profile", compat.SessionSupportsHighProfile).
		Int("transcode_width", compat.TranscodeWidth).
		Bool("intercom", hasIntercom).
		Msg("new sink")

	go func() {
		if err := signaling.Connect(cm.ctx, params.Client, clientSetup, cm.transport, localSetup); err != nil {
			cm.logger.Error().Err(err).Msg("signaling failed")
			telemetry.OperationFailed("signaling", "connect")
			cm.Teardown()
			return
		}
		telemetry.OperationSucceeded("signaling")
	}()

	return track.control, nil
}
