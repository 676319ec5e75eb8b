package rtc

import (
	"strings"

	"github.com/isqad/livelook-bridge/internal/core"
)

const (
	defaultTranscodeWidth = 960
	minTranscodeWidth     = 640
	maxTranscodeWidth     = 1280

	// firefox advertises only 42e01f but decodes high profile fine
	highProfileUserAgentMarker = "Firefox/"
)

// High profile level ids advertised by chrome (64001f) and safari (640c1f).
// 42xxxx is baseline.
var highProfileLevelIDs = []string{
	"profile-level-id=64001f",
	"profile-level-id=640c1f",
}

// AnalyzeOptions derives what the client can decode from what it advertised.
// Missing or malformed fields fall back to defaults.
func AnalyzeOptions(options *core.SignalingOptions) core.CompatibilityDecision {
	decision := core.CompatibilityDecision{
		SessionSupportsHighProfile: advertisesHighProfile(options.VideoCodecs()),
		TranscodeWidth:             clampWidth(options.ScreenWidth()),
	}

	if options != nil && strings.Contains(options.UserAgent, highProfileUserAgentMarker) {
		decision.SessionSupportsHighProfile = true
	}

	return decision
}

func advertisesHighProfile(codecs []core.CodecCapability) bool {
	for _, codec := range codecs {
		if !strings.EqualFold(codec.MimeType, "video/h264") {
			continue
		}
		fmtp := strings.ToLower(codec.SDPFmtpLine)
		for _, id := range highProfileLevelIDs {
			if strings.Contains(fmtp, id) {
				return true
			}
		}
	}
	return false
}

func clampWidth(width int) int {
	if width <= 0 {
		width = defaultTranscodeWidth
	}
	if width > maxTranscodeWidth {
		return maxTranscodeWidth
	}
	if width < minTranscodeWidth {
		return minTranscodeWidth
	}
	return width
}
