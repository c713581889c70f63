package jobstore

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperMarksAbandonedJobs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock, nil)
	checker := NewStaleChecker(store, nil, time.Minute, nil)
	sweeper := NewSweeper(store, checker, time.Minute, nil)

	old := time.Now().Add(-10 * time.Minute)

	// Candidate listing.
	mock.ExpectQuery("SELECT (.+) FROM search_jobs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{
			"request_id", "session_id", "status", "progress", "idempotency_key",
			"result", "error", "created_at", "updated_at",
		}).AddRow("r1", "sess-a", "RUNNING", 60, "idem-r1", []byte(nil), []byte(nil), old, old))

	// Evaluate re-reads before marking.
	mock.ExpectQuery("SELECT (.+) FROM search_jobs").
		WithArgs("r1", "sess-a").
		WillReturnRows(pgxmock.NewRows([]string{
			"request_id", "session_id", "status", "progress", "idempotency_key",
			"result", "error", "created_at", "updated_at",
		}).AddRow("r1", "sess-a", "RUNNING", 60, "idem-r1", []byte(nil), []byte(nil), old, old))

	mock.ExpectExec("UPDATE search_jobs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	sweeper.sweep(context.Background())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweeperSkipsJobsThatFinishedMeanwhile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock, nil)
	checker := NewStaleChecker(store, nil, time.Minute, nil)
	sweeper := NewSweeper(store, checker, time.Minute, nil)

	old := time.Now().Add(-10 * time.Minute)

	mock.ExpectQuery("SELECT (.+) FROM search_jobs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{
			"request_id", "session_id", "status", "progress", "idempotency_key",
			"result", "error", "created_at", "updated_at",
		}).AddRow("r1", "sess-a", "RUNNING", 60, "idem-r1", []byte(nil), []byte(nil), old, old))

	// The re-read sees a terminal job; no update follows.
	mock.ExpectQuery("SELECT (.+) FROM search_jobs").
		WithArgs("r1", "sess-a").
		WillReturnRows(pgxmock.NewRows([]string{
			"request_id", "session_id", "status", "progress", "idempotency_key",
			"result", "error", "created_at", "updated_at",
		}).AddRow("r1", "sess-a", "DONE_SUCCESS", 100, "idem-r1", []byte(`{"requestId":"r1"}`), []byte(nil), old, time.Now()))

	sweeper.sweep(context.Background())
	assert.NoError(t, mock.ExpectationsWereMet())
}
