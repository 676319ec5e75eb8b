package core

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepository(t *testing.T) (*SessionsRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}

	sqlxDb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { sqlxDb.Close() })

	return NewSessionsRepository(sqlxDb), mock
}

func TestSessionsRepositorySave(t *testing.T) {
	repo, mock := newMockRepository(t)

	session := NewSession("user-1", CompatibilityDecision{SessionSupportsHighProfile: true, TranscodeWidth: 960})

	mock.ExpectExec(`INSERT INTO bridge_sessions`).
		WithArgs(session.ID, "user-1", "created", true, 960, session.CreatedAt, session.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.Nil(t, repo.Save(session))
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestSessionsRepositoryUpdates(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`UPDATE bridge_sessions SET state`).
		WithArgs("connected", "id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE bridge_sessions SET\s+destination`).
		WithArgs("remote", "passthrough", "id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE bridge_sessions SET fallback_reason`).
		WithArgs("transcoder_start_failed", "id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.Nil(t, repo.UpdateState("id-1", SessionConnected))
	assert.Nil(t, repo.RecordHints("id-1", DestinationRemote, ToolPassthrough))
	assert.Nil(t, repo.RecordFallback("id-1", FallbackTranscoderStart))
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestSessionsRepositoryFinishTwice(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`finished_at = NOW\(\)`).
		WithArgs("closed", "id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`finished_at = NOW\(\)`).
		WithArgs("closed", "id-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Nil(t, repo.Finish("id-1"))
	assert.ErrorIs(t, repo.Finish("id-1"), ErrSessionNotFound)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestSessionsRepositoryFindByID(t *testing.T) {
	repo, mock := newMockRepository(t)

	now := time.Now()
	destination := "local"
	columns := []string{
		"id", "user_id", "state", "high_profile", "transcode_width", "destination",
		"tool", "fallback_reason", "created_at", "updated_at", "finished_at",
	}

	mock.ExpectQuery(`FROM bridge_sessions\s+WHERE id = \$1`).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("id-1", "user-1", "connected", false, 640, destination, nil, nil, now, now, nil))

	session, err := repo.FindByID("id-1")
	require.Nil(t, err)
	assert.Equal(t, UserSessionID("user-1"), session.UserID)
	assert.Equal(t, SessionConnected, session.State)
	assert.Equal(t, 640, session.TranscodeWidth)
	require.NotNil(t, session.Destination)
	assert.Equal(t, "local", *session.Destination)
	assert.Nil(t, session.Tool)
	assert.Nil(t, session.FinishedAt)

	mock.ExpectQuery(`FROM bridge_sessions\s+WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err = repo.FindByID("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionsRepositoryGetActive(t *testing.T) {
	repo, mock := newMockRepository(t)

	now := time.Now()
	columns := []string{
		"id", "user_id", "state", "high_profile", "transcode_width", "destination",
		"tool", "fallback_reason", "created_at", "updated_at", "finished_at",
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bridge_sessions`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`ORDER BY updated_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(2, 2).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("id-3", "user-3", "connected", true, 1280, nil, nil, nil, now, now, nil))

	active, err := repo.GetActive(2, 2)
	require.Nil(t, err)
	assert.Equal(t, 2, active.TotalPages)
	assert.Len(t, active.Sessions, 1)
	assert.Nil(t, mock.ExpectationsWereMet())
}
