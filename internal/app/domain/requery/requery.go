// Package requery decides whether a request can reuse the session's cached
// candidate pool or must go back to the provider. The decision is pure and
// fully logged; it never calls out.
package requery

import (
	"math"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

const (
	// Pool reuse tolerances. A move beyond moveThresholdMeters or a radius
	// change beyond radiusChangeRatio invalidates the pool.
	moveThresholdMeters = 500.0
	radiusChangeRatio   = 0.5

	// A filtered pool smaller than this is too thin to paginate or relax
	// against; fetch fresh candidates instead.
	minUsablePoolSize = 5
)

// Reason is the stable label for why a provider call is or is not needed.
type Reason string

const (
	ReasonNoPool         Reason = "no_pool"
	ReasonQueryChanged   Reason = "query_changed"
	ReasonRouteChanged   Reason = "route_changed"
	ReasonCityChanged    Reason = "city_changed"
	ReasonRegionChanged  Reason = "region_changed"
	ReasonUserMoved      Reason = "user_moved"
	ReasonRadiusChanged  Reason = "radius_changed"
	ReasonPoolTooSmall   Reason = "pool_too_small"
	ReasonFiltersChanged Reason = "soft_filters_only"
	ReasonPoolReused     Reason = "pool_reused"
)

// Decision says whether to call the provider and why.
type Decision struct {
	CallProvider bool
	Reason       Reason
}

// PoolStats summarises the cached pool after local filtering.
type PoolStats struct {
	TotalCount    int
	FilteredCount int
}

type Decider struct {
	logger *zap.Logger
}

func NewDecider(logger *zap.Logger) *Decider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decider{logger: logger}
}

// Decide compares the incoming search context against the pool's origin
// context. Filter changes alone never force a provider call; filters are
// applied locally to the pool.
func (d *Decider) Decide(prev *models.SearchContext, next models.SearchContext, stats *PoolStats) Decision {
	decision := d.evaluate(prev, next, stats)
	fields := []zap.Field{
		zap.Bool("call_provider", decision.CallProvider),
		zap.String("reason", string(decision.Reason)),
	}
	if stats != nil {
		fields = append(fields,
			zap.Int("pool_total", stats.TotalCount),
			zap.Int("pool_filtered", stats.FilteredCount),
		)
	}
	d.logger.Info("requery_decision", fields...)
	return decision
}

func (d *Decider) evaluate(prev *models.SearchContext, next models.SearchContext, stats *PoolStats) Decision {
	if prev == nil {
		return Decision{CallProvider: true, Reason: ReasonNoPool}
	}
	if prev.Query != next.Query {
		return Decision{CallProvider: true, Reason: ReasonQueryChanged}
	}
	if prev.Route != next.Route {
		return Decision{CallProvider: true, Reason: ReasonRouteChanged}
	}
	if prev.CityText != next.CityText {
		return Decision{CallProvider: true, Reason: ReasonCityChanged}
	}
	if prev.RegionCode != next.RegionCode {
		return Decision{CallProvider: true, Reason: ReasonRegionChanged}
	}
	if moved(prev.UserLocation, next.UserLocation) {
		return Decision{CallProvider: true, Reason: ReasonUserMoved}
	}
	if radiusChanged(prev.RadiusMeters, next.RadiusMeters) {
		return Decision{CallProvider: true, Reason: ReasonRadiusChanged}
	}
	if stats != nil && stats.FilteredCount < minUsablePoolSize {
		return Decision{CallProvider: true, Reason: ReasonPoolTooSmall}
	}
	if prev.FilterSignature != next.FilterSignature {
		return Decision{CallProvider: false, Reason: ReasonFiltersChanged}
	}
	return Decision{CallProvider: false, Reason: ReasonPoolReused}
}

func moved(prev, next *models.LatLng) bool {
	switch {
	case prev == nil && next == nil:
		return false
	case prev == nil || next == nil:
		return true
	}
	return prev.DistanceMeters(*next) > moveThresholdMeters
}

func radiusChanged(prev, next float64) bool {
	if prev == next {
		return false
	}
	if prev <= 0 || next <= 0 {
		return true
	}
	return math.Abs(next-prev)/prev > radiusChangeRatio
}
