package jobstore

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically marks abandoned RUNNING jobs. The result endpoint
// already does this lazily on poll; the sweeper catches jobs nobody polls.
type Sweeper struct {
	store   *PostgresStore
	checker *StaleChecker
	maxAge  time.Duration
	logger  *zap.Logger
}

func NewSweeper(store *PostgresStore, checker *StaleChecker, maxAge time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		store:   store,
		checker: checker,
		maxAge:  maxAge,
		logger:  logger,
	}
}

// Run sweeps at half the stale window until ctx is cancelled. Half keeps the
// worst-case detection delay at 1.5x the window.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.maxAge / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	jobs, err := s.store.FindStaleRunning(ctx, s.maxAge)
	if err != nil {
		s.logger.Warn("stale_sweep_list_failed", zap.Error(err))
		return
	}

	marked := 0
	for i := range jobs {
		// Evaluate re-checks the ages and skips jobs with live subscribers.
		ok, err := s.checker.Evaluate(ctx, &jobs[i])
		if err != nil {
			s.logger.Warn("stale_sweep_mark_failed",
				zap.String("request_id", jobs[i].RequestID), zap.Error(err))
			continue
		}
		if ok {
			marked++
		}
	}
	if marked > 0 {
		s.logger.Info("stale_jobs_swept", zap.Int("marked", marked), zap.Int("candidates", len(jobs)))
	}
}
