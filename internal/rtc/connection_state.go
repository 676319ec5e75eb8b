package rtc

import (
	"github.com/pion/webrtc/v3"

	"github.com/isqad/livelook-bridge/internal/core"
)

// failed is transient: a failed connection is always closed afterwards
var transitions = map[core.SessionState][]core.SessionState{
	core.SessionCreated:     {core.SessionNegotiating, core.SessionClosing, core.SessionFailed},
	core.SessionNegotiating: {core.SessionConnected, core.SessionClosing, core.SessionFailed},
	core.SessionConnected:   {core.SessionClosing, core.SessionFailed},
	core.SessionFailed:      {core.SessionClosing},
	core.SessionClosing:     {core.SessionClosed},
}

func canTransition(from, to core.SessionState) bool {
	for _, state := range transitions[from] {
		if state == to {
			return true
		}
	}
	return false
}

func isPeerConnectionAlive(state webrtc.PeerConnectionState) bool {
	switch state {
	case webrtc.PeerConnectionStateFailed,
		webrtc.PeerConnectionStateDisconnected,
		webrtc.PeerConnectionStateClosed:
		return false
	default:
		return true
	}
}

func isICEConnectionAlive(state webrtc.ICEConnectionState) bool {
	switch state {
	case webrtc.ICEConnectionStateFailed,
		webrtc.ICEConnectionStateDisconnected,
		webrtc.ICEConnectionStateClosed:
		return false
	default:
		return true
	}
}
