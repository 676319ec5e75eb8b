package rtc

import "sync"

// negotiationGate opens when a negotiation round completes. Asking for an
// opened gate consumes it: the caller gets a fresh gate that opens with
// the next round.
type negotiationGate struct {
	lock   sync.Mutex
	done   chan struct{}
	opened bool
}

func newNegotiationGate() *negotiationGate {
	return &negotiationGate{done: make(chan struct{})}
}

// Wait returns a channel closed when the current or next round completes
func (g *negotiationGate) Wait() <-chan struct{} {
	g.lock.Lock()
	defer g.lock.Unlock()

	if g.opened {
		g.done = make(chan struct{})
		g.opened = false
	}
	return g.done
}

// Open completes the current round, it is a no-op on an opened gate
func (g *negotiationGate) Open() {
	g.lock.Lock()
	defer g.lock.Unlock()

	if g.opened {
		return
	}
	g.opened = true
	close(g.done)
}
