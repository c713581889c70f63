package filters

import "github.com/FACorreiaa/loci-search/internal/app/models"

// The bucket tables below are the sole source of numeric thresholds. LLM
// stages emit buckets only and never raw numbers.

var ratingThresholds = map[models.RatingBucket]float64{
	models.RatingR35: 3.5,
	models.RatingR40: 4.0,
	models.RatingR45: 4.5,
}

var reviewThresholds = map[models.ReviewCountBucket]int{
	models.ReviewsC25:  25,
	models.ReviewsC100: 100,
	models.ReviewsC500: 500,
}

// priceLevels maps an intent bucket to acceptable provider price levels
// (1 cheapest, 4 most expensive).
var priceLevels = map[models.PriceIntent]map[int]bool{
	models.PriceCheap:     {1: true, 2: true},
	models.PriceModerate:  {2: true, 3: true},
	models.PriceExpensive: {3: true, 4: true},
}

// RatingThreshold resolves a bucket to its minimum rating; ok is false for
// unknown buckets.
func RatingThreshold(b models.RatingBucket) (float64, bool) {
	v, ok := ratingThresholds[b]
	return v, ok
}

func ReviewThreshold(b models.ReviewCountBucket) (int, bool) {
	v, ok := reviewThresholds[b]
	return v, ok
}

// PriceLevelAllowed reports whether a provider price level satisfies the
// intent bucket.
func PriceLevelAllowed(intent models.PriceIntent, level int) bool {
	levels, ok := priceLevels[intent]
	if !ok {
		return true
	}
	return levels[level]
}
