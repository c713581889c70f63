package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CacheMetrics tracks cache performance
type CacheMetrics struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Evictions int64
}

// UnifiedCache is the in-process L1 tier: a bounded generic map with
// per-entry TTL (capped at maxTTL), FIFO eviction on overflow and lazy
// expiry on read. It deliberately has no background sweeper; expired
// entries are dropped when touched or evicted.
type UnifiedCache[T any] struct {
	mu       sync.Mutex
	items    map[string]cacheEntry[T]
	order    []string
	capacity int
	maxTTL   time.Duration
	name     string
	sampling float64
	metrics  CacheMetrics
	logger   *zap.Logger
}

type cacheEntry[T any] struct {
	value      T
	expiration int64
}

// NewUnifiedCache creates a bounded cache. capacity <= 0 means unbounded;
// sampling in [0,1] gates DEBUG cache events.
func NewUnifiedCache[T any](capacity int, maxTTL time.Duration, name string, sampling float64, logger *zap.Logger) *UnifiedCache[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnifiedCache[T]{
		items:    make(map[string]cacheEntry[T]),
		order:    make([]string, 0, capacity),
		capacity: capacity,
		maxTTL:   maxTTL,
		name:     name,
		sampling: sampling,
		logger:   logger,
	}
}

// Set stores an item with the given TTL, capped at the cache's maxTTL.
func (c *UnifiedCache[T]) Set(key string, value T, ttl time.Duration) {
	if ttl <= 0 || ttl > c.maxTTL {
		ttl = c.maxTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists {
		if c.capacity > 0 && len(c.items) >= c.capacity {
			c.evictOldestLocked()
		}
		c.order = append(c.order, key)
	}
	c.items[key] = cacheEntry[T]{
		value:      value,
		expiration: time.Now().Add(ttl).UnixNano(),
	}
	c.metrics.Sets++

	c.debugEvent("cache_l1_set", key, zap.Duration("ttl", ttl))
}

// Get retrieves an item, dropping it when expired.
func (c *UnifiedCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		c.metrics.Misses++
		var zero T
		c.debugEvent("cache_l1_miss", key)
		return zero, false
	}

	if time.Now().UnixNano() > item.expiration {
		c.removeLocked(key)
		c.metrics.Misses++
		var zero T
		c.debugEvent("cache_l1_expired", key)
		return zero, false
	}

	c.metrics.Hits++
	c.debugEvent("cache_l1_hit", key)
	return item.value, true
}

// Delete removes an item from the cache
func (c *UnifiedCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// Clear removes all items from the cache
func (c *UnifiedCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]cacheEntry[T])
	c.order = c.order[:0]
	c.logger.Info("cache_l1_cleared", zap.String("cache", c.name))
}

// GetMetrics returns current cache metrics
func (c *UnifiedCache[T]) GetMetrics() CacheMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// Size returns the number of items in the cache
func (c *UnifiedCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *UnifiedCache[T]) evictOldestLocked() {
	for len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.items[oldest]; ok {
			delete(c.items, oldest)
			c.metrics.Evictions++
			c.debugEvent("cache_l1_evicted", oldest)
			return
		}
	}
}

func (c *UnifiedCache[T]) removeLocked(key string) {
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *UnifiedCache[T]) debugEvent(event, key string, fields ...zap.Field) {
	if c.sampling <= 0 || rand.Float64() > c.sampling {
		return
	}
	fields = append([]zap.Field{zap.String("cache", c.name), zap.String("key", key)}, fields...)
	c.logger.Debug(event, fields...)
}

// CacheKeyBuilder helps build consistent cache keys
type CacheKeyBuilder struct {
	components []interface{}
	logger     *zap.Logger
}

// NewCacheKeyBuilder creates a new cache key builder
func NewCacheKeyBuilder(logger *zap.Logger) *CacheKeyBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheKeyBuilder{
		components: make([]interface{}, 0, 8),
		logger:     logger,
	}
}

// Add adds a component to the cache key
func (b *CacheKeyBuilder) Add(key string, value interface{}) *CacheKeyBuilder {
	b.components = append(b.components, map[string]interface{}{key: value})
	return b
}

// AddQuery adds the canonicalised query text to the cache key
func (b *CacheKeyBuilder) AddQuery(query string) *CacheKeyBuilder {
	return b.Add("query", query)
}

// AddRegion adds the region code to the cache key
func (b *CacheKeyBuilder) AddRegion(region string) *CacheKeyBuilder {
	return b.Add("region", region)
}

// AddSearchLanguage adds the provider language to the cache key. The
// assistant and UI languages must never be added here.
func (b *CacheKeyBuilder) AddSearchLanguage(lang string) *CacheKeyBuilder {
	return b.Add("search_language", lang)
}

// AddLocationBucket adds a coarse location bucket (2 decimal places, ~1 km)
// so nearby requests from the same area share a key.
func (b *CacheKeyBuilder) AddLocationBucket(lat, lng float64) *CacheKeyBuilder {
	return b.Add("location", fmt.Sprintf("%.2f,%.2f", lat, lng))
}

// Build generates the final cache key as an MD5 hash
func (b *CacheKeyBuilder) Build() (string, error) {
	jsonBytes, err := json.Marshal(b.components)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cache key components: %w", err)
	}

	hash := md5.Sum(jsonBytes)
	key := hex.EncodeToString(hash[:])

	b.logger.Debug("cache_key_built",
		zap.String("key", key),
		zap.String("components", string(jsonBytes)),
	)

	return key, nil
}

// BuildOrDefault builds the cache key, returns empty string on error
func (b *CacheKeyBuilder) BuildOrDefault() string {
	key, err := b.Build()
	if err != nil {
		b.logger.Error("cache_key_build_failed", zap.Error(err))
		return ""
	}
	return key
}
