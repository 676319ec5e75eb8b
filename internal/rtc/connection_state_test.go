package rtc

import (
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"

	"github.com/isqad/livelook-bridge/internal/core"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, canTransition(core.SessionCreated, core.SessionNegotiating))
	assert.True(t, canTransition(core.SessionNegotiating, core.SessionConnected))
	assert.True(t, canTransition(core.SessionConnected, core.SessionClosing))
	assert.True(t, canTransition(core.SessionClosing, core.SessionClosed))
	assert.True(t, canTransition(core.SessionFailed, core.SessionClosing))

	for _, from := range []core.SessionState{core.SessionCreated, core.SessionNegotiating, core.SessionConnected} {
		assert.True(t, canTransition(from, core.SessionFailed), from)
	}

	assert.False(t, canTransition(core.SessionCreated, core.SessionConnected))
	assert.False(t, canTransition(core.SessionClosing, core.SessionFailed))
	assert.False(t, canTransition(core.SessionClosed, core.SessionClosing))
	assert.False(t, canTransition(core.SessionFailed, core.SessionConnected))
}

func TestTransportLiveness(t *testing.T) {
	assert.True(t, isPeerConnectionAlive(webrtc.PeerConnectionStateNew))
	assert.True(t, isPeerConnectionAlive(webrtc.PeerConnectionStateConnecting))
	assert.True(t, isPeerConnectionAlive(webrtc.PeerConnectionStateConnected))
	assert.False(t, isPeerConnectionAlive(webrtc.PeerConnectionStateDisconnected))
	assert.False(t, isPeerConnectionAlive(webrtc.PeerConnectionStateFailed))
	assert.False(t, isPeerConnectionAlive(webrtc.PeerConnectionStateClosed))

	assert.True(t, isICEConnectionAlive(webrtc.ICEConnectionStateChecking))
	assert.True(t, isICEConnectionAlive(webrtc.ICEConnectionStateCompleted))
	assert.False(t, isICEConnectionAlive(webrtc.ICEConnectionStateDisconnected))
	assert.False(t, isICEConnectionAlive(webrtc.ICEConnectionStateFailed))
}
