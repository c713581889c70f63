// Package jobstore persists the async job lifecycle. Two implementations
// share one contract: an in-process map for dev and a Postgres-backed store
// for production. Reads are session-scoped; ownership mismatches surface as
// not-found so request IDs never leak across sessions.
package jobstore

import (
	"context"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

// Store is the job lifecycle contract. Progress is monotone non-decreasing,
// terminal jobs are immutable and heartbeats touch UpdatedAt only.
type Store interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, requestID, sessionID string) (*models.Job, error)
	SetStatus(ctx context.Context, requestID string, status models.JobStatus, progress int) error
	SetResult(ctx context.Context, requestID string, result []byte) error
	SetError(ctx context.Context, requestID string, kind, message, route string) error
	UpdateHeartbeat(ctx context.Context, requestID string) error
	FindByIdempotencyKey(ctx context.Context, sessionID, key string) (*models.Job, error)
	SetCandidatePool(ctx context.Context, requestID string, pool *models.CandidatePool) error
	GetCandidatePool(ctx context.Context, requestID, sessionID string) (*models.CandidatePool, error)
}

// SubscriberChecker is what staleness detection needs from the WS hub.
type SubscriberChecker interface {
	HasActiveSubscribers(requestID, sessionID string) bool
}
