package postfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

func place(id string, mutate ...func(*models.Place)) models.Place {
	p := models.Place{PlaceID: id, Name: "place " + id, Types: []string{"restaurant"}}
	for _, m := range mutate {
		m(&p)
	}
	return p
}

func withRating(r float64, reviews int) func(*models.Place) {
	return func(p *models.Place) {
		p.Rating = &r
		p.UserRatingsTotal = &reviews
	}
}

func withPrice(level int) func(*models.Place) {
	return func(p *models.Place) { p.PriceLevel = &level }
}

func withOpenNow(open bool) func(*models.Place) {
	return func(p *models.Place) {
		p.OpeningHours = &models.OpeningHours{OpenNow: &open}
	}
}

func bigPool() []models.Place {
	return []models.Place{
		place("a", withRating(4.6, 900), withOpenNow(true)),
		place("b", withRating(4.2, 300), withOpenNow(true)),
		place("c", withRating(3.9, 120), withOpenNow(false)),
		place("d", withRating(4.8, 50), withOpenNow(true)),
		place("e", withRating(3.2, 1500), withOpenNow(true)),
		place("f"), // no data at all
		place("g", withRating(4.1, 80), withOpenNow(true)),
	}
}

func ids(places []models.Place) []string {
	out := make([]string, 0, len(places))
	for _, p := range places {
		out = append(out, p.PlaceID)
	}
	return out
}

func TestApplyNoFiltersKeepsAll(t *testing.T) {
	s := NewService(nil)
	pool := bigPool()

	got := s.Apply(pool, models.SoftFilters{})

	assert.Equal(t, pool, got.Places)
	assert.Empty(t, got.RelaxSteps)
}

func TestApplyOpenNowDropsClosedKeepsUnknown(t *testing.T) {
	s := NewService(nil)
	open := models.OpenNow

	got := s.Apply(bigPool(), models.SoftFilters{OpenState: &open})

	assert.NotContains(t, ids(got.Places), "c")
	assert.Contains(t, ids(got.Places), "f") // unknown hours kept
}

func TestApplyRatingBucketKeepsUnknown(t *testing.T) {
	s := NewService(nil)
	bucket := models.RatingR40

	got := s.Apply(bigPool(), models.SoftFilters{MinRating: &bucket})

	assert.NotContains(t, ids(got.Places), "c")
	assert.NotContains(t, ids(got.Places), "e")
	assert.Contains(t, ids(got.Places), "f")
}

func TestApplyPriceIntent(t *testing.T) {
	s := NewService(nil)
	cheap := models.PriceCheap
	pool := []models.Place{
		place("cheap", withPrice(1)),
		place("mid", withPrice(2)),
		place("pricey", withPrice(4)),
		place("unknown"),
		place("x1", withPrice(1)),
		place("x2", withPrice(2)),
	}

	got := s.Apply(pool, models.SoftFilters{PriceIntent: &cheap})

	assert.NotContains(t, ids(got.Places), "pricey")
	assert.Contains(t, ids(got.Places), "unknown")
}

func TestApplyDietaryOnlyNarrowsWithPositiveSignal(t *testing.T) {
	s := NewService(nil)

	// No vegan signal anywhere: the constraint stays dormant.
	pool := bigPool()
	got := s.Apply(pool, models.SoftFilters{Vegan: true})
	assert.Len(t, got.Places, len(pool))

	// One tagged place: the pool narrows, then relaxes because it is too
	// thin, restoring the full pool with a logged step.
	tagged := append(bigPool(), place("v", func(p *models.Place) {
		p.Types = []string{"vegan_restaurant"}
	}))
	got = s.Apply(tagged, models.SoftFilters{Vegan: true})
	require.NotEmpty(t, got.RelaxSteps)
	assert.Equal(t, "dietary", got.RelaxSteps[0].Field)
	assert.Len(t, got.Places, len(tagged))
}

func TestRelaxOrderOpenBeforeRating(t *testing.T) {
	s := NewService(nil)
	open := models.OpenNow
	bucket := models.RatingR45

	// Strict filters over a small pool force two relax steps.
	pool := []models.Place{
		place("a", withRating(4.0, 100), withOpenNow(false)),
		place("b", withRating(3.8, 100), withOpenNow(false)),
		place("c", withRating(4.1, 100), withOpenNow(false)),
		place("d", withRating(4.2, 100), withOpenNow(false)),
		place("e", withRating(4.0, 100), withOpenNow(false)),
	}
	got := s.Apply(pool, models.SoftFilters{OpenState: &open, MinRating: &bucket})

	require.Len(t, got.RelaxSteps, 2)
	assert.Equal(t, RelaxStep{Step: 1, Field: "openState", From: "OPEN_NOW", To: ""}, got.RelaxSteps[0])
	assert.Equal(t, RelaxStep{Step: 2, Field: "minRatingBucket", From: "R45", To: ""}, got.RelaxSteps[1])
	assert.Len(t, got.Places, len(pool))
}

func TestRelaxRatingClearsBucketOutright(t *testing.T) {
	s := NewService(nil)
	bucket := models.RatingR45

	// Every place sits well below the bucket; the single rating step must
	// restore the whole pool, not lower the bar one notch.
	pool := []models.Place{
		place("a", withRating(3.0, 100)),
		place("b", withRating(3.0, 200)),
		place("c", withRating(3.0, 300)),
		place("d", withRating(3.0, 400)),
		place("e", withRating(3.0, 500)),
		place("f", withRating(3.0, 600)),
	}
	got := s.Apply(pool, models.SoftFilters{MinRating: &bucket})

	require.Len(t, got.RelaxSteps, 1)
	assert.Equal(t, RelaxStep{Step: 1, Field: "minRatingBucket", From: "R45", To: ""}, got.RelaxSteps[0])
	assert.Len(t, got.Places, len(pool))
}

func TestRelaxStopsAtStepBudget(t *testing.T) {
	s := NewService(nil)
	open := models.OpenNow
	bucket := models.RatingR45

	got := s.Apply([]models.Place{
		place("a", withRating(2.0, 10), withOpenNow(false)),
	}, models.SoftFilters{OpenState: &open, MinRating: &bucket, Vegan: true})

	assert.LessOrEqual(t, len(got.RelaxSteps), 2)
}

func TestRelaxSkipsWhenEnoughSurvive(t *testing.T) {
	s := NewService(nil)
	bucket := models.RatingR35

	got := s.Apply(bigPool(), models.SoftFilters{MinRating: &bucket})

	assert.Empty(t, got.RelaxSteps)
	assert.NotContains(t, ids(got.Places), "e")
}

func TestCountMatchesFilterWithoutRelax(t *testing.T) {
	s := NewService(nil)
	bucket := models.RatingR45

	n := s.Count(bigPool(), models.SoftFilters{MinRating: &bucket})

	// a (4.6), d (4.8) and f (unknown) pass.
	assert.Equal(t, 3, n)
}

func TestOpenBetweenOverlap(t *testing.T) {
	s := NewService(nil)
	window := models.TimeWindow{StartMin: 20 * 60, EndMin: 23 * 60}

	hours := func(open, close int) func(*models.Place) {
		return func(p *models.Place) {
			spans := make([]models.OpeningSpan, 0, 7)
			for day := 0; day < 7; day++ {
				spans = append(spans, models.OpeningSpan{Weekday: day, OpenMin: open, CloseMin: close})
			}
			p.OpeningHours = &models.OpeningHours{Periods: spans}
		}
	}
	pool := []models.Place{
		place("evening", hours(18*60, 24*60)),
		place("lunch", hours(11*60, 15*60)),
		place("unknown"),
		place("e2", hours(18*60, 24*60)),
		place("e3", hours(18*60, 24*60)),
		place("e4", hours(18*60, 24*60)),
	}

	got := s.Apply(pool, models.SoftFilters{OpenBetween: &window})

	assert.NotContains(t, ids(got.Places), "lunch")
	assert.Contains(t, ids(got.Places), "evening")
	assert.Contains(t, ids(got.Places), "unknown")
}
