// Package intent classifies a query into a provider route plus the language
// and region evidence the rest of the pipeline keys off.
package intent

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/domain/llm"
	"github.com/FACorreiaa/loci-search/internal/app/models"
	"github.com/FACorreiaa/loci-search/internal/pkg/retry"
)

// Result is the intent stage's strict-JSON classification.
type Result struct {
	Route              models.Route        `json:"route"`
	Reason             models.IntentReason `json:"reason"`
	Language           string              `json:"language"`
	LanguageConfidence float64             `json:"languageConfidence"`
	RegionCandidate    string              `json:"regionCandidate"`
	RegionConfidence   float64             `json:"regionConfidence"`
	CityText           string              `json:"cityText,omitempty"`
}

type Service struct {
	llm     llm.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewService(client llm.Client, timeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{llm: client, timeout: timeout, logger: logger}
}

const intentPromptFmt = `Classify a restaurant search query for routing.

Routes:
- TEXTSEARCH: free-text search, possibly mentioning a city.
- NEARBY: the user wants places near their current location ("near me", "nearby", "close", small radius wording).
- LANDMARK: the query anchors on a named landmark ("near the Eiffel Tower").

Reasons (choose one): nearby_intent, proximity_keywords, small_radius_detected, user_location_primary, explicit_city_mentioned, landmark_mentioned, default.

Also report the query's language as a two-letter code with a confidence in [0,1], a candidate ISO-3166-1 alpha-2 region the query implies (or ""), its confidence, and the city text if a city is explicitly mentioned.

User has location: %t
Respond with JSON only:
{"route":"...","reason":"...","language":"..","languageConfidence":0.0,"regionCandidate":"..","regionConfidence":0.0,"cityText":""}

Query: %q`

// Classify runs the intent LLM call, retrying a timeout exactly once. On
// final failure a conservative fallback keeps the pipeline moving.
func (s *Service) Classify(ctx context.Context, query string, hasUserLocation bool) Result {
	ctx, span := otel.Tracer("IntentService").Start(ctx, "Classify")
	defer span.End()

	result, err := retry.Do(ctx, 2, retry.Always, func(ctx context.Context) (Result, error) {
		var out Result
		err := s.llm.GenerateJSON(ctx, "intent", fmt.Sprintf(intentPromptFmt, hasUserLocation, query), s.timeout, &out)
		return out, err
	})
	if err != nil {
		s.logger.Warn("intent_fallback_default", zap.Error(err))
		span.SetAttributes(attribute.Bool("intent.fallback", true))
		return Result{
			Route:              models.RouteTextSearch,
			Reason:             models.ReasonDefault,
			LanguageConfidence: 0.5,
		}
	}

	result = normalize(result, hasUserLocation)

	s.logger.Info("intent_classified",
		zap.String("route", string(result.Route)),
		zap.String("reason", string(result.Reason)),
		zap.String("language", result.Language),
		zap.Float64("language_confidence", result.LanguageConfidence),
		zap.String("region", result.RegionCandidate),
		zap.String("city_text", result.CityText),
	)
	span.SetAttributes(
		attribute.String("intent.route", string(result.Route)),
		attribute.String("intent.reason", string(result.Reason)),
	)
	return result
}

func normalize(r Result, hasUserLocation bool) Result {
	switch r.Route {
	case models.RouteTextSearch, models.RouteNearby, models.RouteLandmark:
	default:
		r.Route = models.RouteTextSearch
		r.Reason = models.ReasonDefault
	}

	switch r.Reason {
	case models.ReasonNearbyIntent, models.ReasonProximityKeywords, models.ReasonSmallRadiusDetected,
		models.ReasonUserLocationPrimary, models.ReasonExplicitCity, models.ReasonLandmarkMentioned,
		models.ReasonDefault:
	default:
		r.Reason = models.ReasonDefault
	}

	// A NEARBY route without user coordinates cannot be executed.
	if r.Route == models.RouteNearby && !hasUserLocation {
		r.Route = models.RouteTextSearch
		r.Reason = models.ReasonDefault
	}

	if r.LanguageConfidence < 0 {
		r.LanguageConfidence = 0
	}
	if r.LanguageConfidence > 1 {
		r.LanguageConfidence = 1
	}

	r.RegionCandidate = ValidateRegion(r.RegionCandidate)
	return r
}
