package jobstore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

// MemoryStore is the dev implementation. It holds jobs and candidate pools
// in process and enforces the same contract as the Postgres store.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[string]*models.Job
	pools  map[string]*models.CandidatePool
	ttl    time.Duration
	logger *zap.Logger
}

func NewMemoryStore(ttl time.Duration, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		jobs:   make(map[string]*models.Job),
		pools:  make(map[string]*models.CandidatePool),
		ttl:    ttl,
		logger: logger,
	}
}

func (s *MemoryStore) Create(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.RequestID]; exists {
		return models.ErrConflict
	}

	now := time.Now()
	cp := *job
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.jobs[job.RequestID] = &cp
	s.evictExpiredLocked(now)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, requestID, sessionID string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[requestID]
	if !ok || job.SessionID != sessionID {
		return nil, models.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, requestID string, status models.JobStatus, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[requestID]
	if !ok {
		return models.ErrNotFound
	}
	if job.Status.Terminal() {
		return models.ErrTerminalJob
	}

	job.Status = status
	if progress > job.Progress {
		job.Progress = progress
	}
	job.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetResult(ctx context.Context, requestID string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[requestID]
	if !ok {
		return models.ErrNotFound
	}
	if job.Status.Terminal() {
		return models.ErrTerminalJob
	}

	job.Result = append([]byte(nil), result...)
	job.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetError(ctx context.Context, requestID string, kind, message, route string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[requestID]
	if !ok {
		return models.ErrNotFound
	}
	// Stale-marking races with normal completion; the first terminal write
	// wins and later ones are no-ops.
	if job.Status.Terminal() {
		return models.ErrTerminalJob
	}

	job.Status = models.StatusDoneFailed
	job.Error = &models.JobError{Kind: kind, Message: message, Route: route}
	job.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) UpdateHeartbeat(ctx context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[requestID]
	if !ok {
		return models.ErrNotFound
	}
	if job.Status.Terminal() {
		return nil
	}
	job.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) FindByIdempotencyKey(ctx context.Context, sessionID, key string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *models.Job
	for _, job := range s.jobs {
		if job.SessionID != sessionID || job.IdempotencyKey != key {
			continue
		}
		if newest == nil || job.CreatedAt.After(newest.CreatedAt) {
			newest = job
		}
	}
	if newest == nil {
		return nil, models.ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (s *MemoryStore) SetCandidatePool(ctx context.Context, requestID string, pool *models.CandidatePool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[requestID]; !ok {
		return models.ErrNotFound
	}
	s.pools[requestID] = pool
	return nil
}

func (s *MemoryStore) GetCandidatePool(ctx context.Context, requestID, sessionID string) (*models.CandidatePool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[requestID]
	if !ok || job.SessionID != sessionID {
		return nil, models.ErrNotFound
	}
	pool, ok := s.pools[requestID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return pool, nil
}

func (s *MemoryStore) evictExpiredLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, job := range s.jobs {
		if now.Sub(job.CreatedAt) > s.ttl {
			delete(s.jobs, id)
			delete(s.pools, id)
		}
	}
}
