package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

// PGXQuerier is the subset of pgxpool.Pool the store needs; pgxmock
// implements it for tests.
type PGXQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the shared production store backed by the search_jobs
// table. Candidate pools ride in a jsonb column on the job row.
type PostgresStore struct {
	db      PGXQuerier
	builder sq.StatementBuilderType
	logger  *zap.Logger
}

func NewPostgresStore(db PGXQuerier, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger:  logger,
	}
}

const jobColumns = "request_id, session_id, status, progress, idempotency_key, result, error, created_at, updated_at"

func (s *PostgresStore) Create(ctx context.Context, job *models.Job) error {
	var errJSON []byte
	if job.Error != nil {
		var err error
		errJSON, err = json.Marshal(job.Error)
		if err != nil {
			return fmt.Errorf("failed to encode job error: %w", err)
		}
	}

	query, args, err := s.builder.
		Insert("search_jobs").
		Columns("request_id", "session_id", "status", "progress", "idempotency_key", "result", "error").
		Values(job.RequestID, job.SessionID, string(job.Status), job.Progress, job.IdempotencyKey, []byte(job.Result), errJSON).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.ErrConflict
		}
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, requestID, sessionID string) (*models.Job, error) {
	query, args, err := s.builder.
		Select(jobColumns).
		From("search_jobs").
		Where(sq.Eq{"request_id": requestID, "session_id": sessionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	return s.scanJob(s.db.QueryRow(ctx, query, args...))
}

func (s *PostgresStore) SetStatus(ctx context.Context, requestID string, status models.JobStatus, progress int) error {
	// GREATEST keeps progress monotone; the status guard keeps terminal
	// jobs immutable.
	query, args, err := s.builder.
		Update("search_jobs").
		Set("status", string(status)).
		Set("progress", sq.Expr("GREATEST(progress, ?)", progress)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"request_id": requestID}).
		Where(sq.NotEq{"status": []string{string(models.StatusDoneSuccess), string(models.StatusDoneFailed)}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrTerminal(ctx, requestID)
	}
	return nil
}

func (s *PostgresStore) SetResult(ctx context.Context, requestID string, result []byte) error {
	query, args, err := s.builder.
		Update("search_jobs").
		Set("result", result).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"request_id": requestID}).
		Where(sq.NotEq{"status": []string{string(models.StatusDoneSuccess), string(models.StatusDoneFailed)}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrTerminal(ctx, requestID)
	}
	return nil
}

func (s *PostgresStore) SetError(ctx context.Context, requestID string, kind, message, route string) error {
	errJSON, err := json.Marshal(models.JobError{Kind: kind, Message: message, Route: route})
	if err != nil {
		return fmt.Errorf("failed to encode job error: %w", err)
	}

	query, args, err := s.builder.
		Update("search_jobs").
		Set("status", string(models.StatusDoneFailed)).
		Set("error", errJSON).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"request_id": requestID}).
		Where(sq.NotEq{"status": []string{string(models.StatusDoneSuccess), string(models.StatusDoneFailed)}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrTerminal(ctx, requestID)
	}
	return nil
}

func (s *PostgresStore) UpdateHeartbeat(ctx context.Context, requestID string) error {
	query, args, err := s.builder.
		Update("search_jobs").
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"request_id": requestID}).
		Where(sq.NotEq{"status": []string{string(models.StatusDoneSuccess), string(models.StatusDoneFailed)}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	// Heartbeats on terminal or evicted jobs are no-ops.
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update heartbeat: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByIdempotencyKey(ctx context.Context, sessionID, key string) (*models.Job, error) {
	query, args, err := s.builder.
		Select(jobColumns).
		From("search_jobs").
		Where(sq.Eq{"session_id": sessionID, "idempotency_key": key}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	return s.scanJob(s.db.QueryRow(ctx, query, args...))
}

func (s *PostgresStore) SetCandidatePool(ctx context.Context, requestID string, pool *models.CandidatePool) error {
	poolJSON, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("failed to encode candidate pool: %w", err)
	}

	query, args, err := s.builder.
		Update("search_jobs").
		Set("candidate_pool", poolJSON).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"request_id": requestID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set candidate pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetCandidatePool(ctx context.Context, requestID, sessionID string) (*models.CandidatePool, error) {
	query, args, err := s.builder.
		Select("candidate_pool").
		From("search_jobs").
		Where(sq.Eq{"request_id": requestID, "session_id": sessionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	var poolJSON []byte
	if err := s.db.QueryRow(ctx, query, args...).Scan(&poolJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read candidate pool: %w", err)
	}
	if len(poolJSON) == 0 {
		return nil, models.ErrNotFound
	}

	var pool models.CandidatePool
	if err := json.Unmarshal(poolJSON, &pool); err != nil {
		return nil, fmt.Errorf("failed to decode candidate pool: %w", err)
	}
	return &pool, nil
}

// FindStaleRunning returns RUNNING jobs older than maxAge on both heartbeat
// and creation time; the caller still has to clear them with the hub check.
func (s *PostgresStore) FindStaleRunning(ctx context.Context, maxAge time.Duration) ([]models.Job, error) {
	cutoff := time.Now().Add(-maxAge)
	query, args, err := s.builder.
		Select(jobColumns).
		From("search_jobs").
		Where(sq.Eq{"status": string(models.StatusRunning)}).
		Where(sq.Lt{"updated_at": cutoff, "created_at": cutoff}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanJobFromRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) scanJob(row pgx.Row) (*models.Job, error) {
	job, err := scanJobFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func scanJobFromRow(row pgx.Row) (*models.Job, error) {
	var (
		job     models.Job
		status  string
		result  []byte
		errJSON []byte
	)
	if err := row.Scan(&job.RequestID, &job.SessionID, &status, &job.Progress,
		&job.IdempotencyKey, &result, &errJSON, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	job.Status = models.JobStatus(status)
	job.Result = result
	if len(errJSON) > 0 {
		var jobErr models.JobError
		if err := json.Unmarshal(errJSON, &jobErr); err != nil {
			return nil, fmt.Errorf("failed to decode job error: %w", err)
		}
		job.Error = &jobErr
	}
	return &job, nil
}

// missingOrTerminal distinguishes an absent row from a terminal one after a
// guarded update matched nothing.
func (s *PostgresStore) missingOrTerminal(ctx context.Context, requestID string) error {
	query, args, err := s.builder.
		Select("status").
		From("search_jobs").
		Where(sq.Eq{"request_id": requestID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build select: %w", err)
	}

	var status string
	if err := s.db.QueryRow(ctx, query, args...).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to re-read job: %w", err)
	}
	if models.JobStatus(status).Terminal() {
		return models.ErrTerminalJob
	}
	return models.ErrNotFound
}
