package rtc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestNegotiationGate(t *testing.T) {
	gate := newNegotiationGate()

	first := gate.Wait()
	second := gate.Wait()
	assert.False(t, isClosed(first))

	gate.Open()
	gate.Open()
	assert.True(t, isClosed(first))
	assert.True(t, isClosed(second))

	// the consumed gate is re-armed for the next round
	next := gate.Wait()
	assert.False(t, isClosed(next))
	assert.False(t, isClosed(gate.Wait()))

	gate.Open()
	assert.True(t, isClosed(next))
}
