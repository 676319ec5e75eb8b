package forwarder

import (
	"errors"
	"sync"
)

var ErrNoFreePorts = errors.New("no free ports")

// PortsAllocator hands out even UDP ports for RTP; the odd port above
// each one stays reserved for the RTCP that ffmpeg sends next to it.
type PortsAllocator struct {
	sync.Mutex
	udpPorts map[int]bool
	ordered  []int
	next     int
}

func NewPortsAllocator(rangeStart, rangeEnd int) *PortsAllocator {
	p := &PortsAllocator{
		udpPorts: make(map[int]bool),
	}

	if rangeStart%2 != 0 {
		rangeStart++
	}
	for i := rangeStart; i+1 < rangeEnd; i += 2 {
		p.udpPorts[i] = false
		p.ordered = append(p.ordered, i)
	}

	return p
}

func (p *PortsAllocator) Allocate() (int, error) {
	p.Lock()
	defer p.Unlock()

	for i := 0; i < len(p.ordered); i++ {
		port := p.ordered[(p.next+i)%len(p.ordered)]
		if !p.udpPorts[port] {
			p.udpPorts[port] = true
			p.next = (p.next + i + 1) % len(p.ordered)
			return port, nil
		}
	}

	return 0, ErrNoFreePorts
}

func (p *PortsAllocator) Deallocate(port int) {
	p.Lock()
	if _, ok := p.udpPorts[port]; ok {
		p.udpPorts[port] = false
	}
	p.Unlock()
}
