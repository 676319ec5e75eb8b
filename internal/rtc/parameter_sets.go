package rtc

import (
	"encoding/base64"
	"strings"

	"github.com/pion/sdp/v3"
)

const spropParameterSets = "sprop-parameter-sets"

// ParameterSets are the decoder configuration records of an H.264 stream
type ParameterSets struct {
	SPS []byte
	PPS []byte
}

func (p ParameterSets) Complete() bool {
	return len(p.SPS) > 0 && len(p.PPS) > 0
}

// ParameterSetsFromMediaSection reads sprop-parameter-sets of the first
// fmtp attribute carrying them
func ParameterSetsFromMediaSection(section *sdp.MediaDescription) ParameterSets {
	var sets ParameterSets
	if section == nil {
		return sets
	}

	for _, attr := range section.Attributes {
		if attr.Key != "fmtp" {
			continue
		}
		value, ok := fmtpParameter(attr.Value, spropParameterSets)
		if !ok {
			continue
		}

		for _, encoded := range strings.Split(value, ",") {
			nalu, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
			if err != nil || len(nalu) == 0 {
				continue
			}
			switch nalu[0] & naluTypeBitmask {
			case naluTypeSPS:
				sets.SPS = nalu
			case naluTypePPS:
				sets.PPS = nalu
			}
		}
		if sets.Complete() {
			return sets
		}
	}

	return sets
}

// fmtpParameter looks up key in "<pt> k1=v1;k2=v2"
func fmtpParameter(fmtp, key string) (string, bool) {
	if i := strings.IndexByte(fmtp, ' '); i >= 0 {
		fmtp = fmtp[i+1:]
	}
	for _, param := range strings.Split(fmtp, ";") {
		kv := strings.SplitN(strings.TrimSpace(param), "=", 2)
		if len(kv) == 2 && strings.EqualFold(kv[0], key) {
			return kv[1], true
		}
	}
	return "", false
}
