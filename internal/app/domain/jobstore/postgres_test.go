package jobstore

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

func TestPostgresStoreCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock, nil)

	mock.ExpectExec("INSERT INTO search_jobs").
		WithArgs("r1", "sess-a", "RUNNING", 10, "idem-r1", []byte(nil), []byte(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.Create(context.Background(), newJob("r1", "sess-a"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock, nil)
	now := time.Now()

	rows := pgxmock.NewRows([]string{
		"request_id", "session_id", "status", "progress", "idempotency_key",
		"result", "error", "created_at", "updated_at",
	}).AddRow("r1", "sess-a", "DONE_FAILED", 60, "idem-r1",
		[]byte(nil), []byte(`{"kind":"PROVIDER_FAILED","message":"quota"}`), now, now)

	mock.ExpectQuery("SELECT (.+) FROM search_jobs").
		WithArgs("r1", "sess-a").
		WillReturnRows(rows)

	job, err := store.Get(context.Background(), "r1", "sess-a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDoneFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "PROVIDER_FAILED", job.Error.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock, nil)

	mock.ExpectQuery("SELECT (.+) FROM search_jobs").
		WithArgs("r1", "sess-b").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.Get(context.Background(), "r1", "sess-b")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPostgresStoreSetStatusTerminalGuard(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock, nil)

	// Guarded update matches no rows, re-read shows the job is terminal.
	mock.ExpectExec("UPDATE search_jobs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT status FROM search_jobs").
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("DONE_SUCCESS"))

	err = store.SetStatus(context.Background(), "r1", models.StatusRunning, 40)
	assert.ErrorIs(t, err, models.ErrTerminalJob)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreHeartbeatIsNoOpOnMiss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock, nil)

	mock.ExpectExec("UPDATE search_jobs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.NoError(t, store.UpdateHeartbeat(context.Background(), "gone"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
