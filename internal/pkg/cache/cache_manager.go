package cache

import (
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/models"
	"github.com/FACorreiaa/loci-search/internal/pkg/config"
)

// Manager holds all application caches.
type Manager struct {
	// Provider candidate pools, keyed by provider plan. Shared across
	// sessions; empty pools get the short TTLs.
	Places *TieredCache[[]models.Place]

	// Geocoded city centers.
	Geocode *TieredCache[models.LatLng]

	// Canonicalised query text per (rawQuery, language). In-process only;
	// canonicalisation is cheap enough to redo per instance.
	Canonical *gocache.Cache

	// Resolved landmark anchors, long-lived since landmarks do not move.
	Landmarks *gocache.Cache

	Redis *RedisStore
}

// NewManager wires the tiered caches on top of the shared Redis store.
// redis may be nil; the tiered caches then run L0+L1 only.
func NewManager(cfg config.CacheConfig, redis *RedisStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		Places: NewTieredCache[[]models.Place](TieredOptions[[]models.Place]{
			Name:       "places",
			L1Capacity: cfg.L1MaxEntries,
			L1MaxTTL:   cfg.L1MaxTTL,
			DefaultTTL: cfg.L2DefaultTTL,
			EmptyTTL:   cfg.L2EmptyTTL,
			L1EmptyTTL: cfg.L1EmptyTTL,
			Sampling:   cfg.SamplingRate,
			IsEmpty:    func(p []models.Place) bool { return len(p) == 0 },
		}, redis, logger),
		Geocode: NewTieredCache[models.LatLng](TieredOptions[models.LatLng]{
			Name:       "geocode",
			L1Capacity: cfg.L1MaxEntries,
			L1MaxTTL:   cfg.L1MaxTTL,
			DefaultTTL: cfg.GeocodeTTL,
			Sampling:   cfg.SamplingRate,
		}, redis, logger),
		Canonical: gocache.New(cfg.CanonicalTTL, 2*cfg.CanonicalTTL),
		Landmarks: gocache.New(cfg.LandmarkTTL, 2*cfg.LandmarkTTL),
		Redis:     redis,
	}
}

// Stats returns per-cache counters for the ops endpoint.
func (m *Manager) Stats() map[string]CacheMetrics {
	return map[string]CacheMetrics{
		"places":  m.Places.Metrics(),
		"geocode": m.Geocode.Metrics(),
	}
}

// Sizes returns current entry counts, including the go-cache tiers.
func (m *Manager) Sizes() map[string]int {
	return map[string]int{
		"places":    m.Places.Size(),
		"geocode":   m.Geocode.Size(),
		"canonical": m.Canonical.ItemCount(),
		"landmarks": m.Landmarks.ItemCount(),
	}
}
