package rtc

import (
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/rs/zerolog/log"

	"github.com/isqad/livelook-bridge/internal/telemetry"
)

type rtcpSource interface {
	ReadRTCP() ([]rtcp.Packet, interceptor.Attributes, error)
}

// keyframeRequests forwards client keyframe requests at most once per interval
type keyframeRequests struct {
	interval  time.Duration
	onRequest func()
	now       func() time.Time

	lock sync.Mutex
	last time.Time
}

func newKeyframeRequests(interval time.Duration, onRequest func()) *keyframeRequests {
	return &keyframeRequests{
		interval:  interval,
		onRequest: onRequest,
		now:       time.Now,
	}
}

func (k *keyframeRequests) handle(packets []rtcp.Packet) {
	requested := false
	for _, p := range packets {
		switch p.(type) {
		case *rtcp.PictureLossIndication:
			telemetry.KeyframeRequested("pli")
			requested = true
		case *rtcp.FullIntraRequest:
			telemetry.KeyframeRequested("fir")
			requested = true
		}
	}
	if !requested || k.onRequest == nil {
		return
	}

	k.lock.Lock()
	now := k.now()
	if !k.last.IsZero() && now.Sub(k.last) < k.interval {
		k.lock.Unlock()
		return
	}
	k.last = now
	k.lock.Unlock()

	k.onRequest()
}

// readRTCP drains the sender until it is closed. Reading is what makes
// the interceptors process incoming RTCP.
func readRTCP(source rtcpSource, requests *keyframeRequests) {
	for {
		packets, _, err := source.ReadRTCP()
		if err != nil {
			log.Debug().Err(err).Str("service", "rtc").Msg("stop reading RTCP")
			return
		}
		requests.handle(packets)
	}
}
