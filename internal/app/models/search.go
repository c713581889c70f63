package models

import "time"

// Route is the provider strategy chosen by the intent stage.
type Route string

const (
	RouteTextSearch Route = "TEXTSEARCH"
	RouteNearby     Route = "NEARBY"
	RouteLandmark   Route = "LANDMARK"
)

// IntentReason explains why a route was chosen. The ranker uses it for
// profile selection, so the set is closed.
type IntentReason string

const (
	ReasonNearbyIntent        IntentReason = "nearby_intent"
	ReasonProximityKeywords   IntentReason = "proximity_keywords"
	ReasonSmallRadiusDetected IntentReason = "small_radius_detected"
	ReasonUserLocationPrimary IntentReason = "user_location_primary"
	ReasonExplicitCity        IntentReason = "explicit_city_mentioned"
	ReasonLandmarkMentioned   IntentReason = "landmark_mentioned"
	ReasonDefault             IntentReason = "default"
)

// NearbyReasons are the intent reasons that force the NEARBY ranking profile.
var NearbyReasons = map[IntentReason]bool{
	ReasonNearbyIntent:        true,
	ReasonProximityKeywords:   true,
	ReasonSmallRadiusDetected: true,
	ReasonUserLocationPrimary: true,
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// OpeningHours is the normalised opening-hours view of a place. Periods are
// kept opaque; OpenNow is the provider's snapshot at fetch time.
type OpeningHours struct {
	OpenNow *bool          `json:"openNow,omitempty"`
	Periods []OpeningSpan  `json:"periods,omitempty"`
}

// OpeningSpan is one open interval, minutes from midnight on Weekday.
type OpeningSpan struct {
	Weekday   int `json:"weekday"`
	OpenMin   int `json:"openMin"`
	CloseMin  int `json:"closeMin"`
}

// IsOpenAt reports whether the place is open at ts, or false,false when the
// hours are unknown.
func (h *OpeningHours) IsOpenAt(ts time.Time) (bool, bool) {
	if h == nil || len(h.Periods) == 0 {
		return false, false
	}
	day := int(ts.Weekday())
	minute := ts.Hour()*60 + ts.Minute()
	for _, p := range h.Periods {
		if p.Weekday == day && minute >= p.OpenMin && minute < p.CloseMin {
			return true, true
		}
		// Spans crossing midnight are stored on the opening day.
		if p.CloseMin < p.OpenMin {
			if p.Weekday == day && minute >= p.OpenMin {
				return true, true
			}
			if (p.Weekday+1)%7 == day && minute < p.CloseMin {
				return true, true
			}
		}
	}
	return false, true
}

// IsOpenNow returns the provider's open-now snapshot, or false,false when
// unknown.
func (h *OpeningHours) IsOpenNow() (bool, bool) {
	if h == nil || h.OpenNow == nil {
		return false, false
	}
	return *h.OpenNow, true
}

// Place is the normalised provider result every downstream stage operates on.
// Rating, UserRatingsTotal and PriceLevel are nil when the provider did not
// return them; filters must keep such places.
type Place struct {
	PlaceID          string        `json:"placeId"`
	Name             string        `json:"name"`
	Types            []string      `json:"types"`
	Address          string        `json:"address"`
	Location         LatLng        `json:"location"`
	Rating           *float64      `json:"rating,omitempty"`
	UserRatingsTotal *int          `json:"userRatingsTotal,omitempty"`
	PriceLevel       *int          `json:"priceLevel,omitempty"`
	OpeningHours     *OpeningHours `json:"openingHours,omitempty"`
}

// Soft-filter buckets. The LLM emits buckets only; the deterministic tables
// in the filters package are the sole source of numeric thresholds.
type (
	OpenState         string
	PriceIntent       string
	RatingBucket      string
	ReviewCountBucket string
)

const (
	OpenNow OpenState = "OPEN_NOW"

	PriceCheap     PriceIntent = "CHEAP"
	PriceModerate  PriceIntent = "MODERATE"
	PriceExpensive PriceIntent = "EXPENSIVE"

	RatingR35 RatingBucket = "R35"
	RatingR40 RatingBucket = "R40"
	RatingR45 RatingBucket = "R45"

	ReviewsC25  ReviewCountBucket = "C25"
	ReviewsC100 ReviewCountBucket = "C100"
	ReviewsC500 ReviewCountBucket = "C500"
)

// TimeWindow is an open-between constraint in minutes from midnight.
type TimeWindow struct {
	StartMin int `json:"startMin"`
	EndMin   int `json:"endMin"`
}

// SoftFilters are constraints applied locally to the candidate pool. All
// fields are optional; nil means "no constraint".
type SoftFilters struct {
	OpenState        *OpenState         `json:"openState,omitempty"`
	OpenAt           *time.Time         `json:"openAt,omitempty"`
	OpenBetween      *TimeWindow        `json:"openBetween,omitempty"`
	PriceIntent      *PriceIntent       `json:"priceIntent,omitempty"`
	MinRating        *RatingBucket      `json:"minRatingBucket,omitempty"`
	MinReviewCount   *ReviewCountBucket `json:"minReviewCountBucket,omitempty"`
	Vegan            bool               `json:"vegan,omitempty"`
	Vegetarian       bool               `json:"vegetarian,omitempty"`
	GlutenFree       bool               `json:"glutenFree,omitempty"`
	Kosher           bool               `json:"kosher,omitempty"`
	Halal            bool               `json:"halal,omitempty"`
}

// Signature is a stable string of the soft-filter values, used in the
// idempotency key and in the candidate-pool context comparison.
func (f SoftFilters) Signature() string {
	sig := "open:"
	if f.OpenState != nil {
		sig += string(*f.OpenState)
	}
	sig += "|at:"
	if f.OpenAt != nil {
		sig += f.OpenAt.UTC().Format(time.RFC3339)
	}
	sig += "|between:"
	if f.OpenBetween != nil {
		sig += itoa(f.OpenBetween.StartMin) + "-" + itoa(f.OpenBetween.EndMin)
	}
	sig += "|price:"
	if f.PriceIntent != nil {
		sig += string(*f.PriceIntent)
	}
	sig += "|rating:"
	if f.MinRating != nil {
		sig += string(*f.MinRating)
	}
	sig += "|reviews:"
	if f.MinReviewCount != nil {
		sig += string(*f.MinReviewCount)
	}
	sig += "|diet:"
	for _, d := range []struct {
		on  bool
		tag string
	}{
		{f.Vegan, "v"}, {f.Vegetarian, "vg"}, {f.GlutenFree, "gf"}, {f.Kosher, "k"}, {f.Halal, "h"},
	} {
		if d.on {
			sig += d.tag + ","
		}
	}
	return sig
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// PostConstraints are explicit user requirements extracted by the LLM.
type PostConstraints struct {
	Dietary       []string `json:"dietary,omitempty"`
	Accessibility []string `json:"accessibility,omitempty"`
	MustHave      []string `json:"mustHave,omitempty"`
}

// SearchContext is the immutable descriptor of what the provider was asked.
// It is attached to a candidate pool so requery decisions can compare a new
// request against the pool's origin.
type SearchContext struct {
	Query           string  `json:"query"`
	Route           Route   `json:"route"`
	CityText        string  `json:"cityText,omitempty"`
	RegionCode      string  `json:"regionCode,omitempty"`
	UserLocation    *LatLng `json:"userLocation,omitempty"`
	RadiusMeters    float64 `json:"radiusMeters,omitempty"`
	FilterSignature string  `json:"filterSignature"`
}

// Strictness controls how the cuisine enforcer treats required terms.
type Strictness string

const (
	StrictnessStrict       Strictness = "STRICT"
	StrictnessRelaxIfEmpty Strictness = "RELAX_IF_EMPTY"
)

// LocationBias is a circular provider bias or restriction.
type LocationBias struct {
	Center       LatLng  `json:"center"`
	RadiusMeters float64 `json:"radiusMeters"`
}

// Mapping is the tagged route plan the provider stage executes. Exactly one
// of Text/Nearby/Landmark is non-nil, matching Route.
type Mapping struct {
	Route    Route         `json:"route"`
	Text     *TextPlan     `json:"text,omitempty"`
	Nearby   *NearbyPlan   `json:"nearby,omitempty"`
	Landmark *LandmarkPlan `json:"landmark,omitempty"`
}

// TextPlan drives a Places text search.
type TextPlan struct {
	TextQuery      string        `json:"textQuery"`
	RegionCode     string        `json:"regionCode"`
	SearchLanguage string        `json:"searchLanguage"`
	LocationBias   *LocationBias `json:"locationBias,omitempty"`
	RequiredTerms  []string      `json:"requiredTerms,omitempty"`
	PreferredTerms []string      `json:"preferredTerms,omitempty"`
	Strictness     Strictness    `json:"strictness"`
	TypeHint       string        `json:"typeHint,omitempty"`
	CuisineKey     string        `json:"cuisineKey,omitempty"`
}

// NearbyPlan drives a Places nearby search ranked by distance.
type NearbyPlan struct {
	Center         LatLng  `json:"center"`
	RadiusMeters   float64 `json:"radiusMeters"`
	CuisineKey     string  `json:"cuisineKey,omitempty"`
	TypeKey        string  `json:"typeKey,omitempty"`
	RegionCode     string  `json:"regionCode"`
	SearchLanguage string  `json:"searchLanguage"`
}

// LandmarkPlan drives a nearby search anchored on a resolved landmark.
// ResolvedLocation is set when the registry already knows the coordinates,
// letting the provider stage skip geocoding.
type LandmarkPlan struct {
	LandmarkID       string  `json:"landmarkId,omitempty"`
	GeocodeQuery     string  `json:"geocodeQuery,omitempty"`
	ResolvedLocation *LatLng `json:"resolvedLocation,omitempty"`
	RadiusMeters     float64 `json:"radiusMeters"`
	CuisineKey       string  `json:"cuisineKey,omitempty"`
	TypeKey          string  `json:"typeKey,omitempty"`
	RegionCode       string  `json:"regionCode"`
	SearchLanguage   string  `json:"searchLanguage"`
}

// SearchLanguageOf returns the plan's outbound language, for the
// places_call_language assertion.
func (m Mapping) SearchLanguageOf() string {
	switch {
	case m.Text != nil:
		return m.Text.SearchLanguage
	case m.Nearby != nil:
		return m.Nearby.SearchLanguage
	case m.Landmark != nil:
		return m.Landmark.SearchLanguage
	}
	return ""
}

// RegionCodeOf returns the active plan's region code.
func (m Mapping) RegionCodeOf() string {
	switch {
	case m.Text != nil:
		return m.Text.RegionCode
	case m.Nearby != nil:
		return m.Nearby.RegionCode
	case m.Landmark != nil:
		return m.Landmark.RegionCode
	}
	return ""
}

// RankingProfile names a fixed weight tuple; selection is deterministic.
type RankingProfile string

const (
	ProfileBalanced   RankingProfile = "BALANCED"
	ProfileNearby     RankingProfile = "NEARBY"
	ProfileNoLocation RankingProfile = "NO_LOCATION"
)

// RankWeights is a profile's weight tuple. Weights sum to 1.0 before the
// distance weight is zeroed for DistanceOrigin NONE.
type RankWeights struct {
	Rating    float64 `json:"rating"`
	Reviews   float64 `json:"reviews"`
	Distance  float64 `json:"distance"`
	OpenBoost float64 `json:"openBoost"`
}

// DistanceOriginKind tags where ranking distance is measured from.
type DistanceOriginKind string

const (
	OriginCityCenter   DistanceOriginKind = "CITY_CENTER"
	OriginUserLocation DistanceOriginKind = "USER_LOCATION"
	OriginNone         DistanceOriginKind = "NONE"
)

// DistanceOrigin is the resolved reference point for ranking distance.
type DistanceOrigin struct {
	Kind   DistanceOriginKind `json:"kind"`
	Center *LatLng            `json:"center,omitempty"`
}

// ScoreBreakdown is the per-place explanation emitted for the top results.
type ScoreBreakdown struct {
	PlaceID         string   `json:"placeId"`
	Rating          *float64 `json:"rating,omitempty"`
	Reviews         *int     `json:"reviews,omitempty"`
	DistanceMeters  *float64 `json:"distanceMeters,omitempty"`
	OpenNow         *bool    `json:"openNow,omitempty"`
	RatingScore     float64  `json:"ratingScore"`
	ReviewsScore    float64  `json:"reviewsScore"`
	DistanceScore   float64  `json:"distanceScore"`
	OpenBoostScore  float64  `json:"openBoostScore"`
	Total           float64  `json:"total"`
}

// OrderExplain documents how the final ordering was produced.
type OrderExplain struct {
	Profile     RankingProfile   `json:"profile"`
	Weights     RankWeights      `json:"weights"`
	Origin      DistanceOriginKind `json:"distanceOrigin"`
	DistanceRef *LatLng          `json:"distanceRef"`
	Reordered   bool             `json:"reordered"`
	Breakdown   []ScoreBreakdown `json:"breakdown,omitempty"`
}

// Pagination is a post-rank slice of the job's results. It is deliberately
// excluded from the idempotency key.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// SearchRequest is the POST /search body.
type SearchRequest struct {
	Query        string       `json:"query"`
	UILanguage   string       `json:"uiLanguage,omitempty"`
	UserLocation *LatLng      `json:"userLocation,omitempty"`
	SessionID    string       `json:"sessionId"`
	Pagination   *Pagination  `json:"pagination,omitempty"`
	Filters      *SoftFilters `json:"filters,omitempty"`
}

// ContractsVersion tags every terminal payload so clients can detect shape
// changes.
const ContractsVersion = "search_contracts_v1"

// ResponseMeta is the meta block of a successful response.
type ResponseMeta struct {
	TookMs                   int64            `json:"tookMs"`
	Source                   string           `json:"source"`
	LanguageContext          LanguageContext  `json:"languageContext"`
	OrderExplain             *OrderExplain    `json:"order_explain,omitempty"`
	CuisineEnforcementFailed bool             `json:"cuisineEnforcementFailed,omitempty"`
	GateReason               string           `json:"gateReason,omitempty"`
	AssistantMessage         string           `json:"assistantMessage,omitempty"`
}

// SearchResponse is the terminal payload persisted on the job and returned
// from GET /search/{requestId}/result.
type SearchResponse struct {
	ContractsVersion string       `json:"contractsVersion"`
	RequestID        string       `json:"requestId"`
	Status           JobStatus    `json:"status"`
	Terminal         bool         `json:"terminal"`
	Results          []Place      `json:"results"`
	Meta             ResponseMeta `json:"meta"`
}
