package core

import (
	"time"

	"github.com/google/uuid"
)

// UserSessionID identifies a signaling client
type UserSessionID string

type SessionState string

const (
	SessionCreated     SessionState = "created"
	SessionNegotiating SessionState = "negotiating"
	SessionConnected   SessionState = "connected"
	SessionClosing     SessionState = "closing"
	SessionClosed      SessionState = "closed"
	SessionFailed      SessionState = "failed"
)

func (s SessionState) IsTerminal() bool {
	return s == SessionClosed
}

// Session is a persisted record of one bridged connection
type Session struct {
	ID             string            `json:"id" db:"id"`
	UserID         UserSessionID     `json:"user_id" db:"user_id"`
	State          SessionState      `json:"state" db:"state"`
	HighProfile    bool              `json:"high_profile" db:"high_profile"`
	TranscodeWidth int               `json:"transcode_width" db:"transcode_width"`
	Destination    *string           `json:"destination,omitempty" db:"destination"`
	Tool           *string           `json:"tool,omitempty" db:"tool"`
	FallbackReason *string           `json:"fallback_reason,omitempty" db:"fallback_reason"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty" db:"finished_at"`
	Options        *SignalingOptions `json:"options,omitempty" db:"-"`
}

func NewSession(userID UserSessionID, compat CompatibilityDecision) *Session {
	now := time.Now().UTC()

	return &Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		State:          SessionCreated,
		HighProfile:    compat.SessionSupportsHighProfile,
		TranscodeWidth: compat.TranscodeWidth,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
