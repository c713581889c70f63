package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Tier source labels reported by GetOrFetch.
const (
	SourceL1    = "l1"
	SourceL2    = "l2"
	SourceFetch = "fetch"
)

// TieredOptions configures one TieredCache instance.
type TieredOptions[T any] struct {
	Name       string
	L1Capacity int
	L1MaxTTL   time.Duration
	DefaultTTL time.Duration // L2 TTL for non-empty values
	EmptyTTL   time.Duration // L2 TTL when IsEmpty reports true
	L1EmptyTTL time.Duration
	Sampling   float64
	// IsEmpty marks values that should get the short TTLs, typically an
	// empty result slice. Nil means values are never empty.
	IsEmpty func(T) bool
}

// TieredCache layers an in-flight single-flight group (L0), the bounded
// in-process UnifiedCache (L1) and a shared Redis store (L2). Tier failures
// are logged and skipped; only the fetch function's error propagates.
type TieredCache[T any] struct {
	name       string
	l1         *UnifiedCache[T]
	l2         *RedisStore
	flight     singleflight.Group
	defaultTTL time.Duration
	emptyTTL   time.Duration
	l1EmptyTTL time.Duration
	isEmpty    func(T) bool
	logger     *zap.Logger
}

// NewTieredCache builds a tiered cache. l2 may be nil, in which case the
// cache degrades to L0+L1 only.
func NewTieredCache[T any](opts TieredOptions[T], l2 *RedisStore, logger *zap.Logger) *TieredCache[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredCache[T]{
		name:       opts.Name,
		l1:         NewUnifiedCache[T](opts.L1Capacity, opts.L1MaxTTL, opts.Name, opts.Sampling, logger),
		l2:         l2,
		defaultTTL: opts.DefaultTTL,
		emptyTTL:   opts.EmptyTTL,
		l1EmptyTTL: opts.L1EmptyTTL,
		isEmpty:    opts.IsEmpty,
		logger:     logger,
	}
}

type tieredResult[T any] struct {
	value  T
	source string
}

// GetOrFetch returns the cached value for key or invokes fetch exactly once
// per key across concurrent callers. The returned source is one of the
// Source* constants.
func (t *TieredCache[T]) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) (T, error)) (T, string, error) {
	if key == "" {
		v, err := fetch(ctx)
		return v, SourceFetch, err
	}

	if v, ok := t.l1.Get(key); ok {
		return v, SourceL1, nil
	}

	res, err, _ := t.flight.Do(key, func() (interface{}, error) {
		// A concurrent caller may have populated L1 while we waited on
		// the flight group.
		if v, ok := t.l1.Get(key); ok {
			return tieredResult[T]{value: v, source: SourceL1}, nil
		}

		if v, ok := t.readL2(ctx, key); ok {
			t.l1.Set(key, v, t.l1TTLFor(v))
			return tieredResult[T]{value: v, source: SourceL2}, nil
		}

		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		t.l1.Set(key, v, t.l1TTLFor(v))
		t.writeL2(ctx, key, v)
		return tieredResult[T]{value: v, source: SourceFetch}, nil
	})
	if err != nil {
		var zero T
		return zero, SourceFetch, err
	}
	r := res.(tieredResult[T])
	return r.value, r.source, nil
}

// Invalidate drops key from L1 and L2.
func (t *TieredCache[T]) Invalidate(ctx context.Context, key string) {
	t.l1.Delete(key)
	if t.l2 != nil {
		if err := t.l2.Delete(ctx, "cache:"+t.name+":"+key); err != nil {
			t.logger.Warn("cache_l2_delete_failed", zap.String("cache", t.name), zap.Error(err))
		}
	}
}

// Metrics exposes the L1 counters for the stats endpoint.
func (t *TieredCache[T]) Metrics() CacheMetrics {
	return t.l1.GetMetrics()
}

func (t *TieredCache[T]) Size() int { return t.l1.Size() }

func (t *TieredCache[T]) l2Key(key string) string {
	return "cache:" + t.name + ":" + key
}

func (t *TieredCache[T]) l1TTLFor(v T) time.Duration {
	if t.isEmpty != nil && t.isEmpty(v) && t.l1EmptyTTL > 0 {
		return t.l1EmptyTTL
	}
	return 0 // UnifiedCache caps zero to its maxTTL
}

func (t *TieredCache[T]) l2TTLFor(v T) time.Duration {
	if t.isEmpty != nil && t.isEmpty(v) && t.emptyTTL > 0 {
		return t.emptyTTL
	}
	return t.defaultTTL
}

func (t *TieredCache[T]) readL2(ctx context.Context, key string) (T, bool) {
	var zero T
	if t.l2 == nil {
		return zero, false
	}
	raw, found, err := t.l2.Get(ctx, t.l2Key(key))
	if err != nil {
		t.logger.Warn("cache_l2_read_failed", zap.String("cache", t.name), zap.Error(err))
		return zero, false
	}
	if !found {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.logger.Warn("cache_l2_decode_failed", zap.String("cache", t.name), zap.Error(err))
		return zero, false
	}
	return v, true
}

func (t *TieredCache[T]) writeL2(ctx context.Context, key string, v T) {
	if t.l2 == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		t.logger.Warn("cache_l2_encode_failed", zap.String("cache", t.name), zap.Error(err))
		return
	}
	if err := t.l2.Set(ctx, t.l2Key(key), raw, t.l2TTLFor(v)); err != nil {
		t.logger.Warn("cache_l2_write_failed", zap.String("cache", t.name), zap.Error(err))
	}
}
