package requery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

func baseContext() models.SearchContext {
	loc := models.LatLng{Lat: 32.08, Lng: 34.78}
	return models.SearchContext{
		Query:           "איטלקי בגדרה",
		Route:           models.RouteTextSearch,
		CityText:        "גדרה",
		RegionCode:      "IL",
		UserLocation:    &loc,
		RadiusMeters:    10000,
		FilterSignature: "sig-a",
	}
}

func TestDecideNoPoolCallsProvider(t *testing.T) {
	d := NewDecider(nil)

	got := d.Decide(nil, baseContext(), nil)

	assert.True(t, got.CallProvider)
	assert.Equal(t, ReasonNoPool, got.Reason)
}

func TestDecideIdenticalContextReusesPool(t *testing.T) {
	d := NewDecider(nil)
	prev := baseContext()
	stats := &PoolStats{TotalCount: 20, FilteredCount: 12}

	got := d.Decide(&prev, baseContext(), stats)

	assert.False(t, got.CallProvider)
	assert.Equal(t, ReasonPoolReused, got.Reason)
}

func TestDecideFilterChangeOnlyStaysLocal(t *testing.T) {
	d := NewDecider(nil)
	prev := baseContext()
	next := baseContext()
	next.FilterSignature = "sig-b"

	got := d.Decide(&prev, next, &PoolStats{TotalCount: 20, FilteredCount: 9})

	assert.False(t, got.CallProvider)
	// The logged label is part of the contract.
	assert.Equal(t, Reason("soft_filters_only"), got.Reason)
}

func TestDecideContextChangesInvalidate(t *testing.T) {
	d := NewDecider(nil)

	tests := []struct {
		name   string
		mutate func(*models.SearchContext)
		want   Reason
	}{
		{"query", func(c *models.SearchContext) { c.Query = "סושי בגדרה" }, ReasonQueryChanged},
		{"route", func(c *models.SearchContext) { c.Route = models.RouteNearby }, ReasonRouteChanged},
		{"city", func(c *models.SearchContext) { c.CityText = "רחובות" }, ReasonCityChanged},
		{"region", func(c *models.SearchContext) { c.RegionCode = "FR" }, ReasonRegionChanged},
		{"radius", func(c *models.SearchContext) { c.RadiusMeters = 20000 }, ReasonRadiusChanged},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prev := baseContext()
			next := baseContext()
			tc.mutate(&next)

			got := d.Decide(&prev, next, &PoolStats{TotalCount: 20, FilteredCount: 12})

			assert.True(t, got.CallProvider)
			assert.Equal(t, tc.want, got.Reason)
		})
	}
}

func TestDecideMoveThreshold(t *testing.T) {
	d := NewDecider(nil)
	prev := baseContext()

	// ~300m north: within tolerance.
	near := baseContext()
	near.UserLocation = &models.LatLng{Lat: 32.0827, Lng: 34.78}
	got := d.Decide(&prev, near, &PoolStats{TotalCount: 20, FilteredCount: 12})
	assert.False(t, got.CallProvider)

	// ~1.1km north: over the 500m threshold.
	far := baseContext()
	far.UserLocation = &models.LatLng{Lat: 32.09, Lng: 34.78}
	got = d.Decide(&prev, far, &PoolStats{TotalCount: 20, FilteredCount: 12})
	assert.True(t, got.CallProvider)
	assert.Equal(t, ReasonUserMoved, got.Reason)
}

func TestDecideLocationAppearingOrVanishingInvalidates(t *testing.T) {
	d := NewDecider(nil)

	prev := baseContext()
	next := baseContext()
	next.UserLocation = nil
	got := d.Decide(&prev, next, &PoolStats{FilteredCount: 12})
	assert.True(t, got.CallProvider)
	assert.Equal(t, ReasonUserMoved, got.Reason)
}

func TestDecideSmallRadiusChangeTolerated(t *testing.T) {
	d := NewDecider(nil)
	prev := baseContext()
	next := baseContext()
	next.RadiusMeters = 13000 // +30%, under the 50% ratio

	got := d.Decide(&prev, next, &PoolStats{TotalCount: 20, FilteredCount: 12})

	assert.False(t, got.CallProvider)
}

func TestDecideThinPoolRefetches(t *testing.T) {
	d := NewDecider(nil)
	prev := baseContext()

	got := d.Decide(&prev, baseContext(), &PoolStats{TotalCount: 6, FilteredCount: 3})

	assert.True(t, got.CallProvider)
	assert.Equal(t, ReasonPoolTooSmall, got.Reason)
}

func TestDistanceKnownValue(t *testing.T) {
	telAviv := models.LatLng{Lat: 32.0853, Lng: 34.7818}
	jerusalem := models.LatLng{Lat: 31.7683, Lng: 35.2137}

	got := telAviv.DistanceMeters(jerusalem)

	// Roughly 54km between the two city centers.
	assert.InDelta(t, 54000, got, 2000)
}
