package search

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/models"
	"github.com/FACorreiaa/loci-search/internal/pkg/cache"
)

// SessionPools keeps each session's most recent candidate pool so follow-up
// requests (a filter tweak, a page change) can skip the provider. Redis is
// the shared tier; without it the registry is per-instance.
type SessionPools struct {
	mu     sync.Mutex
	local  map[string]*models.CandidatePool
	redis  *cache.RedisStore
	ttl    time.Duration
	logger *zap.Logger
}

func NewSessionPools(redis *cache.RedisStore, ttl time.Duration, logger *zap.Logger) *SessionPools {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionPools{
		local:  make(map[string]*models.CandidatePool),
		redis:  redis,
		ttl:    ttl,
		logger: logger,
	}
}

func poolKey(sessionID string) string { return "session_pool:" + sessionID }

// Load returns the session's latest pool, nil when there is none.
func (p *SessionPools) Load(ctx context.Context, sessionID string) *models.CandidatePool {
	if p.redis != nil {
		raw, found, err := p.redis.Get(ctx, poolKey(sessionID))
		if err != nil {
			p.logger.Warn("session_pool_read_failed", zap.Error(err))
		} else if found {
			var pool models.CandidatePool
			if err := json.Unmarshal(raw, &pool); err != nil {
				p.logger.Warn("session_pool_decode_failed", zap.Error(err))
				return nil
			}
			return &pool
		}
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	pool, ok := p.local[sessionID]
	if !ok {
		return nil
	}
	if p.ttl > 0 && time.Since(pool.FetchedAt) > p.ttl {
		delete(p.local, sessionID)
		return nil
	}
	return pool
}

// Save replaces the session's pool. Failures are logged; the pool is an
// optimisation, not state the pipeline depends on.
func (p *SessionPools) Save(ctx context.Context, sessionID string, pool *models.CandidatePool) {
	if p.redis != nil {
		raw, err := json.Marshal(pool)
		if err != nil {
			p.logger.Warn("session_pool_encode_failed", zap.Error(err))
			return
		}
		if err := p.redis.Set(ctx, poolKey(sessionID), raw, p.ttl); err != nil {
			p.logger.Warn("session_pool_write_failed", zap.Error(err))
		}
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.local[sessionID] = pool
}
