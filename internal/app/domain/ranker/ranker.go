// Package ranker orders the filtered pool with a fixed-weight score. The
// whole stage is deterministic: same pool, same inputs, same order, in any
// request language.
package ranker

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

// breakdownLimit caps how many per-place explanations ride on the response.
const breakdownLimit = 10

// profileWeights are the closed set of weight tuples. Each sums to 1.0; the
// NO_LOCATION distance weight is zero because there is nothing to measure
// from.
var profileWeights = map[models.RankingProfile]models.RankWeights{
	models.ProfileNoLocation: {Rating: 0.45, Reviews: 0.45, Distance: 0, OpenBoost: 0.10},
	models.ProfileNearby:     {Rating: 0.15, Reviews: 0.10, Distance: 0.65, OpenBoost: 0.10},
	models.ProfileBalanced:   {Rating: 0.30, Reviews: 0.25, Distance: 0.35, OpenBoost: 0.10},
}

// Input is what profile and origin selection key off.
type Input struct {
	Route        models.Route
	Reason       models.IntentReason
	ExplicitCity bool
	CityCenter   *models.LatLng
	UserLocation *models.LatLng
}

type Service struct {
	logger *zap.Logger
}

func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger}
}

// Rank scores and orders the places, returning the ordered slice and the
// explanation block.
func (s *Service) Rank(places []models.Place, in Input) ([]models.Place, models.OrderExplain) {
	origin := resolveOrigin(in)
	profile := resolveProfile(in)
	weights := profileWeights[profile]
	if origin.Kind == models.OriginNone {
		weights.Distance = 0
	}

	type scored struct {
		place models.Place
		parts models.ScoreBreakdown
	}
	scoredPlaces := make([]scored, 0, len(places))
	for _, p := range places {
		scoredPlaces = append(scoredPlaces, scored{place: p, parts: scoreOne(p, weights, origin)})
	}

	originalOrder := make(map[string]int, len(places))
	for i, p := range places {
		originalOrder[p.PlaceID] = i
	}

	sort.SliceStable(scoredPlaces, func(i, j int) bool {
		a, b := scoredPlaces[i], scoredPlaces[j]
		if a.parts.Total != b.parts.Total {
			return a.parts.Total > b.parts.Total
		}
		ar, br := reviewsOf(a.place), reviewsOf(b.place)
		if ar != br {
			return ar > br
		}
		return a.place.PlaceID < b.place.PlaceID
	})

	ordered := make([]models.Place, 0, len(scoredPlaces))
	reordered := false
	explain := models.OrderExplain{
		Profile: profile,
		Weights: weights,
		Origin:  origin.Kind,
	}
	if origin.Center != nil {
		ref := *origin.Center
		explain.DistanceRef = &ref
	}
	for i, sp := range scoredPlaces {
		ordered = append(ordered, sp.place)
		if originalOrder[sp.place.PlaceID] != i {
			reordered = true
		}
		if i < breakdownLimit {
			explain.Breakdown = append(explain.Breakdown, sp.parts)
		}
	}
	explain.Reordered = reordered

	s.logger.Info("ranking_applied",
		zap.String("profile", string(profile)),
		zap.String("distance_origin", string(origin.Kind)),
		zap.Int("count", len(ordered)),
		zap.Bool("reordered", reordered),
	)
	return ordered, explain
}

// resolveOrigin picks the distance reference: a geocoded explicit city wins,
// user coordinates next, otherwise distance is out of the score.
func resolveOrigin(in Input) models.DistanceOrigin {
	if in.ExplicitCity && in.CityCenter != nil {
		return models.DistanceOrigin{Kind: models.OriginCityCenter, Center: in.CityCenter}
	}
	if in.UserLocation != nil {
		return models.DistanceOrigin{Kind: models.OriginUserLocation, Center: in.UserLocation}
	}
	return models.DistanceOrigin{Kind: models.OriginNone}
}

// resolveProfile applies the selection table on (route, hasUserLocation,
// intentReason) only; geocode outcomes never change the profile. A landmark
// route without a nearby reason stays BALANCED.
func resolveProfile(in Input) models.RankingProfile {
	if in.UserLocation == nil {
		return models.ProfileNoLocation
	}
	if in.Route == models.RouteNearby || models.NearbyReasons[in.Reason] {
		return models.ProfileNearby
	}
	return models.ProfileBalanced
}

// scoreOne computes the weighted components. Missing rating or reviews score
// zero; unknown open state scores half the boost.
func scoreOne(p models.Place, w models.RankWeights, origin models.DistanceOrigin) models.ScoreBreakdown {
	parts := models.ScoreBreakdown{
		PlaceID: p.PlaceID,
		Rating:  p.Rating,
		Reviews: p.UserRatingsTotal,
	}

	if p.Rating != nil {
		parts.RatingScore = w.Rating * (*p.Rating / 5)
	}
	if p.UserRatingsTotal != nil {
		parts.ReviewsScore = w.Reviews * (math.Log10(float64(*p.UserRatingsTotal)+1) / 5)
	}
	if origin.Center != nil && w.Distance > 0 {
		meters := origin.Center.DistanceMeters(p.Location)
		parts.DistanceMeters = &meters
		parts.DistanceScore = w.Distance * (1 / (1 + meters/1000))
	}

	open, known := p.OpeningHours.IsOpenNow()
	switch {
	case !known:
		parts.OpenBoostScore = w.OpenBoost * 0.5
	case open:
		openNow := true
		parts.OpenNow = &openNow
		parts.OpenBoostScore = w.OpenBoost
	default:
		closed := false
		parts.OpenNow = &closed
	}

	parts.Total = parts.RatingScore + parts.ReviewsScore + parts.DistanceScore + parts.OpenBoostScore
	return parts
}

func reviewsOf(p models.Place) int {
	if p.UserRatingsTotal == nil {
		return 0
	}
	return *p.UserRatingsTotal
}
