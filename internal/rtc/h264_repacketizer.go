package rtc

import (
	"encoding/binary"

	"github.com/pion/rtp"
)

const (
	naluTypeBitmask = 0x1F
	naluRefIdcMask  = 0xE0

	naluTypeIDR   = 5
	naluTypeSPS   = 7
	naluTypePPS   = 8
	naluTypeSTAPA = 24
	naluTypeFUA   = 28

	fuStartBit = 0x80
	fuEndBit   = 0x40

	fuaHeaderSize   = 2
	stapaHeaderSize = 1
	stapaNALULength = 2
)

// H264Repacketizer rewrites an H.264 RTP stream so that no packet exceeds
// maxPacketSize bytes. Oversized single NAL units and aggregation packets
// are split into FU-A fragments, oversized FU-A fragments are split again.
// Parameter sets are sent ahead of an IDR picture the stream did not
// announce them for.
//
// Output sequence numbers follow the input ones shifted by the packets
// added so far, so a gap left by upstream loss stays a gap. Timestamp and
// SSRC of each input packet are kept, the marker bit goes to its last
// fragment.
type H264Repacketizer struct {
	maxPacketSize int
	params        ParameterSets
	// packets emitted beyond one per input
	offset uint16

	// parameter sets were seen since the last picture
	announced bool
}

func NewH264Repacketizer(maxPacketSize int, params ParameterSets) *H264Repacketizer {
	return &H264Repacketizer{
		maxPacketSize: maxPacketSize,
		params:        params,
	}
}

// Repacketize returns the packets to send in place of p, in order.
// The returned packets do not reference p's payload.
func (r *H264Repacketizer) Repacketize(p *rtp.Packet) []*rtp.Packet {
	budget := r.maxPacketSize - p.Header.MarshalSize()
	if budget <= fuaHeaderSize {
		// nothing sensible fits, keep the stream flowing
		budget = len(p.Payload)
	}

	out := make([]*rtp.Packet, 0, 1)
	emit := func(payload []byte) {
		out = append(out, r.packet(p, payload))
	}

	if len(p.Payload) == 0 {
		emit(nil)
		return r.finish(p, out)
	}

	naluType := p.Payload[0] & naluTypeBitmask
	switch {
	case naluType == naluTypeSTAPA:
		nalus, ok := splitSTAPA(p.Payload)
		if !ok {
			emit(p.Payload)
			break
		}
		for _, nalu := range nalus {
			r.remember(nalu)
			r.track(nalu[0]&naluTypeBitmask, true, emit)
		}
		if len(p.Payload) <= budget {
			emit(p.Payload)
			break
		}
		for _, nalu := range nalus {
			r.single(nalu, budget, emit)
		}
	case naluType == naluTypeFUA:
		if len(p.Payload) < fuaHeaderSize {
			emit(p.Payload)
			break
		}
		header := p.Payload[1]
		r.track(header&naluTypeBitmask, header&fuStartBit != 0, emit)
		if len(p.Payload) <= budget {
			emit(p.Payload)
			break
		}
		r.refragment(p.Payload, budget, emit)
	case naluType >= 1 && naluType <= 23:
		r.remember(p.Payload)
		r.track(naluType, true, emit)
		r.single(p.Payload, budget, emit)
	default:
		emit(p.Payload)
	}

	return r.finish(p, out)
}

// track keeps parameter sets up to date and injects them ahead of an
// unannounced IDR picture
func (r *H264Repacketizer) track(naluType uint8, start bool, emit func([]byte)) {
	switch naluType {
	case naluTypeSPS, naluTypePPS:
		r.announced = true
	case naluTypeIDR:
		if !start {
			return
		}
		if !r.announced && r.params.Complete() {
			emit(r.params.SPS)
			emit(r.params.PPS)
		}
		r.announced = false
	default:
		if start {
			r.announced = false
		}
	}
}

func (r *H264Repacketizer) remember(nalu []byte) {
	switch nalu[0] & naluTypeBitmask {
	case naluTypeSPS:
		r.params.SPS = append([]byte(nil), nalu...)
	case naluTypePPS:
		r.params.PPS = append([]byte(nil), nalu...)
	}
}

func (r *H264Repacketizer) single(nalu []byte, budget int, emit func([]byte)) {
	if len(nalu) <= budget {
		emit(nalu)
		return
	}

	indicator := nalu[0]&naluRefIdcMask | naluTypeFUA
	naluType := nalu[0] & naluTypeBitmask
	fragment(nalu[1:], budget-fuaHeaderSize, func(chunk []byte, first, last bool) {
		header := naluType
		if first {
			header |= fuStartBit
		}
		if last {
			header |= fuEndBit
		}
		emit(fuaPayload(indicator, header, chunk))
	})
}

func (r *H264Repacketizer) refragment(payload []byte, budget int, emit func([]byte)) {
	indicator := payload[0]
	header := payload[1]
	fragment(payload[fuaHeaderSize:], budget-fuaHeaderSize, func(chunk []byte, first, last bool) {
		h := header &^ (fuStartBit | fuEndBit)
		if first {
			h |= header & fuStartBit
		}
		if last {
			h |= header & fuEndBit
		}
		emit(fuaPayload(indicator, h, chunk))
	})
}

func (r *H264Repacketizer) packet(src *rtp.Packet, payload []byte) *rtp.Packet {
	p := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    src.PayloadType,
			Timestamp:      src.Timestamp,
			SSRC:           src.SSRC,
		},
		Payload: append([]byte(nil), payload...),
	}
	return p
}

func (r *H264Repacketizer) finish(src *rtp.Packet, out []*rtp.Packet) []*rtp.Packet {
	for i, p := range out {
		p.SequenceNumber = src.SequenceNumber + r.offset + uint16(i)
	}
	// wraps around when nothing was emitted
	r.offset += uint16(len(out)) - 1

	if len(out) > 0 {
		out[len(out)-1].Marker = src.Marker
	}
	return out
}

func fuaPayload(indicator, header byte, chunk []byte) []byte {
	payload := make([]byte, fuaHeaderSize+len(chunk))
	payload[0] = indicator
	payload[1] = header
	copy(payload[fuaHeaderSize:], chunk)
	return payload
}

// fragment cuts data into chunks of at most size bytes
func fragment(data []byte, size int, fn func(chunk []byte, first, last bool)) {
	if size <= 0 {
		size = len(data)
	}
	for offset := 0; offset < len(data); offset += size {
		end := offset + size
		if end > len(data) {
			end = len(data)
		}
		fn(data[offset:end], offset == 0, end == len(data))
	}
}

// splitSTAPA returns the NAL units of an aggregation packet
func splitSTAPA(payload []byte) ([][]byte, bool) {
	nalus := make([][]byte, 0, 3)
	for offset := stapaHeaderSize; offset < len(payload); {
		if offset+stapaNALULength > len(payload) {
			return nil, false
		}
		size := int(binary.BigEndian.Uint16(payload[offset:]))
		offset += stapaNALULength
		if size == 0 || offset+size > len(payload) {
			return nil, false
		}
		nalus = append(nalus, payload[offset:offset+size])
		offset += size
	}
	return nalus, len(nalus) > 0
}
