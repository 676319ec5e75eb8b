package transcode

import "github.com/isqad/livelook-bridge/internal/media"

const (
	StartSubject = "transcode.start"
	StopSubject  = "transcode.stop"
	// QueueName spreads start requests over running daemons
	QueueName = "transcoders"
)

// StartMessage transfers data for run a new transcoder
type StartMessage struct {
	StreamID string                 `json:"stream_id"`
	Input    *media.TranscoderInput `json:"input"`
	Args     media.TranscodeArgs    `json:"args"`
}

// Reply answers a StartMessage. Error is set when nothing was started.
type Reply struct {
	ID     string                 `json:"id,omitempty"`
	Output *media.TranscoderInput `json:"output,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

type StopMessage struct {
	ID string `json:"id"`
}
