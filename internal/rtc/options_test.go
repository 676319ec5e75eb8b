package rtc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/isqad/livelook-bridge/internal/core"
)

func optionsWithCodecs(fmtps ...string) *core.SignalingOptions {
	codecs := make([]core.CodecCapability, 0, len(fmtps))
	for _, fmtp := range fmtps {
		codecs = append(codecs, core.CodecCapability{MimeType: "video/H264", ClockRate: 90000, SDPFmtpLine: fmtp})
	}
	return &core.SignalingOptions{Capabilities: &core.Capabilities{Video: codecs}}
}

func TestAnalyzeOptionsHighProfile(t *testing.T) {
	cases := []struct {
		name    string
		options *core.SignalingOptions
		high    bool
	}{
		{"chrome", optionsWithCodecs("level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f", "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=64001f"), true},
		{"safari", optionsWithCodecs("packetization-mode=1;profile-level-id=640C1F"), true},
		{"baseline only", optionsWithCodecs("packetization-mode=1;profile-level-id=42e01f"), false},
		{"nest hub level 2.1", optionsWithCodecs("profile-level-id=640015"), false},
		{"no capabilities", &core.SignalingOptions{}, false},
		{"nil options", nil, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.high, AnalyzeOptions(c.options).SessionSupportsHighProfile)
		})
	}
}

func TestAnalyzeOptionsIgnoresOtherCodecs(t *testing.T) {
	options := &core.SignalingOptions{Capabilities: &core.Capabilities{Video: []core.CodecCapability{
		{MimeType: "video/VP8", SDPFmtpLine: "profile-level-id=64001f"},
	}}}

	assert.False(t, AnalyzeOptions(options).SessionSupportsHighProfile)
}

func TestAnalyzeOptionsFirefoxOverride(t *testing.T) {
	options := optionsWithCodecs("packetization-mode=1;profile-level-id=42e01f")
	options.UserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"

	assert.True(t, AnalyzeOptions(options).SessionSupportsHighProfile)

	assert.True(t, AnalyzeOptions(&core.SignalingOptions{UserAgent: "Firefox/99"}).SessionSupportsHighProfile)
}

func TestAnalyzeOptionsTranscodeWidth(t *testing.T) {
	for _, w := range []int{1, 320, 639, 640, 800, 960, 1280, 1281, 1920, 3840} {
		options := &core.SignalingOptions{Screen: &core.Screen{Width: w}}
		expected := w
		if expected < 640 {
			expected = 640
		}
		if expected > 1280 {
			expected = 1280
		}
		assert.Equal(t, expected, AnalyzeOptions(options).TranscodeWidth, "width %d", w)
	}

	assert.Equal(t, 960, AnalyzeOptions(&core.SignalingOptions{}).TranscodeWidth)
	assert.Equal(t, 960, AnalyzeOptions(nil).TranscodeWidth)
	assert.Equal(t, 960, AnalyzeOptions(&core.SignalingOptions{Screen: &core.Screen{Width: -5}}).TranscodeWidth)
}
