package core

// CodecCapability is one codec entry advertised by a client
type CodecCapability struct {
	MimeType    string `json:"mimeType"`
	ClockRate   uint32 `json:"clockRate,omitempty"`
	Channels    uint16 `json:"channels,omitempty"`
	SDPFmtpLine string `json:"sdpFmtpLine,omitempty"`
}

type Capabilities struct {
	Audio []CodecCapability `json:"audio,omitempty"`
	Video []CodecCapability `json:"video,omitempty"`
}

type Screen struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// SignalingOptions is a snapshot of what a client told us about itself
// when the signaling session was opened. Every field is optional.
type SignalingOptions struct {
	Capabilities *Capabilities `json:"capabilities,omitempty"`
	Screen       *Screen       `json:"screen,omitempty"`
	UserAgent    string        `json:"userAgent,omitempty"`
}

// VideoCodecs returns advertised video codecs or nil
func (o *SignalingOptions) VideoCodecs() []CodecCapability {
	if o == nil || o.Capabilities == nil {
		return nil
	}
	return o.Capabilities.Video
}

// ScreenWidth returns the advertised width or 0 when unknown
func (o *SignalingOptions) ScreenWidth() int {
	if o == nil || o.Screen == nil {
		return 0
	}
	return o.Screen.Width
}

// CompatibilityDecision is derived from SignalingOptions only
type CompatibilityDecision struct {
	SessionSupportsHighProfile bool `json:"session_supports_high_profile"`
	TranscodeWidth             int  `json:"transcode_width"`
}
