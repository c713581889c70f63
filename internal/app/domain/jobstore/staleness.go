package jobstore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

// StaleChecker clears RUNNING jobs that outlived their heartbeat. A job is
// stale only when heartbeat age AND total age exceed maxAge AND no WS
// subscriber is attached; a watched job is kept alive regardless of age.
type StaleChecker struct {
	store  Store
	hub    SubscriberChecker
	maxAge time.Duration
	logger *zap.Logger
}

func NewStaleChecker(store Store, hub SubscriberChecker, maxAge time.Duration, logger *zap.Logger) *StaleChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaleChecker{store: store, hub: hub, maxAge: maxAge, logger: logger}
}

// Evaluate decides and, when stale, applies the DONE_FAILED(STALE_RUNNING)
// transition. The store's terminal guard makes concurrent evaluators mark at
// most once. Returns true when this call performed the transition.
func (c *StaleChecker) Evaluate(ctx context.Context, job *models.Job) (bool, error) {
	if job == nil || job.Status != models.StatusRunning {
		return false, nil
	}

	now := time.Now()
	updatedAge := now.Sub(job.UpdatedAt)
	totalAge := now.Sub(job.CreatedAt)
	if updatedAge <= c.maxAge || totalAge <= c.maxAge {
		return false, nil
	}

	if c.hub != nil && c.hub.HasActiveSubscribers(job.RequestID, job.SessionID) {
		c.logger.Info("dedup_kept_alive_by_subscribers",
			zap.String("request_id", job.RequestID),
			zap.Duration("updated_age", updatedAge),
		)
		return false, nil
	}

	// Re-read inside the decision so a job that completed while we were
	// looking is left alone.
	fresh, err := c.store.Get(ctx, job.RequestID, job.SessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if fresh.Status.Terminal() {
		return false, nil
	}

	err = c.store.SetError(ctx, job.RequestID, models.CodeStaleRunning,
		"job exceeded its heartbeat window with no active subscribers", "")
	if err != nil {
		if errors.Is(err, models.ErrTerminalJob) || errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	c.logger.Warn("job_marked_stale",
		zap.String("request_id", job.RequestID),
		zap.Duration("updated_age", updatedAge),
		zap.Duration("total_age", totalAge),
	)
	return true, nil
}

// IsStale is the read-only variant used by the result endpoint to annotate
// in-flight polls without mutating the job.
func (c *StaleChecker) IsStale(job *models.Job) bool {
	if job == nil || job.Status != models.StatusRunning {
		return false
	}
	now := time.Now()
	if now.Sub(job.UpdatedAt) <= c.maxAge || now.Sub(job.CreatedAt) <= c.maxAge {
		return false
	}
	if c.hub != nil && c.hub.HasActiveSubscribers(job.RequestID, job.SessionID) {
		return false
	}
	return true
}
