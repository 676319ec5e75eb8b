package core

import (
	"database/sql"
	"errors"
	"math"

	"github.com/jmoiron/sqlx"
)

const (
	sessionsPageDefault    int = 1
	sessionsPerPageDefault int = 50
)

var ErrSessionNotFound = errors.New("session not found")

type SessionsDBStorer interface {
	Save(*Session) error
	UpdateState(id string, state SessionState) error
	RecordHints(id string, destination DestinationHint, tool ToolHint) error
	RecordFallback(id string, reason FallbackReason) error
	Finish(id string) error
	FindByID(id string) (*Session, error)
}

type ActiveSessions struct {
	Sessions   []*Session `json:"sessions"`
	TotalPages int        `json:"total_pages"`
}

type SessionsRepository struct {
	db *sqlx.DB
}

func NewSessionsRepository(db *sqlx.DB) *SessionsRepository {
	return &SessionsRepository{
		db: db,
	}
}

func (r *SessionsRepository) Save(session *Session) error {
	_, err := r.db.Exec(
		`INSERT INTO bridge_sessions
			(id, user_id, state, high_profile, transcode_width, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID,
		string(session.UserID),
		string(session.State),
		session.HighProfile,
		session.TranscodeWidth,
		session.CreatedAt,
		session.UpdatedAt,
	)
	return err
}

func (r *SessionsRepository) UpdateState(id string, state SessionState) error {
	return r.exec(
		`UPDATE bridge_sessions SET state = $1, updated_at = NOW() WHERE id = $2`,
		string(state),
		id,
	)
}

func (r *SessionsRepository) RecordHints(id string, destination DestinationHint, tool ToolHint) error {
	return r.exec(
		`UPDATE bridge_sessions SET
			destination = $1,
			tool = $2,
			updated_at = NOW()
		WHERE id = $3`,
		string(destination),
		string(tool),
		id,
	)
}

func (r *SessionsRepository) RecordFallback(id string, reason FallbackReason) error {
	return r.exec(
		`UPDATE bridge_sessions SET fallback_reason = $1, updated_at = NOW() WHERE id = $2`,
		string(reason),
		id,
	)
}

func (r *SessionsRepository) Finish(id string) error {
	return r.exec(
		`UPDATE bridge_sessions SET
			state = $1,
			finished_at = NOW(),
			updated_at = NOW()
		WHERE id = $2 AND finished_at IS NULL`,
		string(SessionClosed),
		id,
	)
}

func (r *SessionsRepository) FindByID(id string) (*Session, error) {
	session := &Session{}

	err := r.db.Get(session,
		`SELECT
			id,
			user_id,
			state,
			high_profile,
			transcode_width,
			destination,
			tool,
			fallback_reason,
			created_at,
			updated_at,
			finished_at
		FROM bridge_sessions
		WHERE id = $1 LIMIT 1`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (r *SessionsRepository) GetActive(page int, perPage int) (*ActiveSessions, error) {
	if page <= 0 {
		page = sessionsPageDefault
	}
	if perPage <= 0 {
		perPage = sessionsPerPageDefault
	}

	active := &ActiveSessions{}

	var total int
	err := r.db.Get(&total, `SELECT COUNT(*) FROM bridge_sessions WHERE finished_at IS NULL`)
	if err != nil {
		return nil, err
	}
	active.TotalPages = int(math.Ceil(float64(total) / float64(perPage)))

	sessions := []*Session{}
	err = r.db.Select(&sessions,
		`SELECT
			id,
			user_id,
			state,
			high_profile,
			transcode_width,
			destination,
			tool,
			fallback_reason,
			created_at,
			updated_at,
			finished_at
		FROM bridge_sessions
		WHERE finished_at IS NULL
		ORDER BY updated_at DESC LIMIT $1 OFFSET $2`,
		perPage, (page-1)*perPage,
	)
	if err != nil {
		return nil, err
	}
	active.Sessions = sessions

	return active, nil
}

func (r *SessionsRepository) exec(query string, args ...interface{}) error {
	res, err := r.db.Exec(query, args...)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}

	return nil
}
