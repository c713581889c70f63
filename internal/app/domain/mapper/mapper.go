// Package mapper turns an intent classification into a concrete provider
// plan: a text search, a nearby search, or a landmark-anchored search. The
// LLM proposes the plan; deterministic post-processing owns the cuisine key,
// the region, the location bias and the outbound language.
package mapper

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/domain/intent"
	"github.com/FACorreiaa/loci-search/internal/app/domain/llm"
	"github.com/FACorreiaa/loci-search/internal/app/models"
)

const (
	cityBiasRadiusMeters = 10_000
	userBiasRadiusMeters = 20_000

	defaultNearbyRadiusMeters   = 2_000
	defaultLandmarkRadiusMeters = 1_500
	minRadiusMeters             = 100
	maxRadiusMeters             = 50_000
)

// Geocoder resolves an explicit city mention to coordinates. Implemented by
// the places package; failures downgrade the bias, they never fail the stage.
type Geocoder interface {
	GeocodeCity(ctx context.Context, cityText, regionCode, language string) (models.LatLng, error)
}

// Input is everything the mapper needs from the upstream stages.
type Input struct {
	Query        string
	Intent       intent.Result
	Language     models.LanguageContext
	UserLocation *models.LatLng
}

type Service struct {
	llm       llm.Client
	canonical *Canonicalizer
	cuisine   *CuisineExtractor
	landmarks *LandmarkRegistry
	geocoder  Geocoder
	timeout   time.Duration
	logger    *zap.Logger
}

func NewService(client llm.Client, canonical *Canonicalizer, geocoder Geocoder, timeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		llm:       client,
		canonical: canonical,
		cuisine:   NewCuisineExtractor(),
		landmarks: NewLandmarkRegistry(),
		geocoder:  geocoder,
		timeout:   timeout,
		logger:    logger,
	}
}

// Map builds the provider plan for the classified route. An LLM failure here
// is fatal for the job; there is no deterministic substitute for a plan.
func (s *Service) Map(ctx context.Context, in Input) (models.Mapping, error) {
	ctx, span := otel.Tracer("MapperService").Start(ctx, "Map")
	defer span.End()
	span.SetAttributes(attribute.String("mapper.route", string(in.Intent.Route)))

	var (
		mapping models.Mapping
		err     error
	)
	switch in.Intent.Route {
	case models.RouteNearby:
		mapping, err = s.mapNearby(ctx, in)
	case models.RouteLandmark:
		mapping, err = s.mapLandmark(ctx, in)
	default:
		mapping, err = s.mapText(ctx, in)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.Mapping{}, err
	}

	s.logger.Info("route_mapped",
		zap.String("route", string(mapping.Route)),
		zap.String("search_language", mapping.SearchLanguageOf()),
	)
	span.SetStatus(codes.Ok, "")
	return mapping, nil
}

type textPlanWire struct {
	TextQuery      string   `json:"textQuery"`
	RequiredTerms  []string `json:"requiredTerms"`
	PreferredTerms []string `json:"preferredTerms"`
	Strictness     string   `json:"strictness"`
	TypeHint       string   `json:"typeHint"`
}

const textPromptFmt = `Plan a restaurant text search from a user query.
Keep textQuery in the query's own language; strip filler words but keep the cuisine and any explicit city.
requiredTerms: terms a result must satisfy to count as a match. preferredTerms: nice-to-have terms.
strictness: "STRICT" when dropping requiredTerms would betray the user's ask, else "RELAX_IF_EMPTY".
typeHint: a single Places type like "restaurant" or "cafe", or "".
Respond with JSON only: {"textQuery":"","requiredTerms":[],"preferredTerms":[],"strictness":"","typeHint":""}

Query: %q`

func (s *Service) mapText(ctx context.Context, in Input) (models.Mapping, error) {
	var wire textPlanWire
	err := s.llm.GenerateJSON(ctx, "mapper_text", fmt.Sprintf(textPromptFmt, in.Query), s.timeout, &wire)
	if err != nil {
		return models.Mapping{}, models.NewStageError(models.CodeMapperFailed, models.RouteTextSearch, "text route planning failed", err)
	}

	textQuery := s.canonicalQuery(ctx, in, wire.TextQuery)
	plan := &models.TextPlan{
		TextQuery:      textQuery,
		RegionCode:     in.Intent.RegionCandidate,
		SearchLanguage: in.Language.SearchLanguage,
		RequiredTerms:  wire.RequiredTerms,
		PreferredTerms: wire.PreferredTerms,
		Strictness:     normalizeStrictness(wire.Strictness),
		TypeHint:       wire.TypeHint,
		CuisineKey:     s.cuisine.Extract(in.Query),
	}
	plan.LocationBias = s.resolveBias(ctx, in)

	return models.Mapping{Route: models.RouteTextSearch, Text: plan}, nil
}

type nearbyPlanWire struct {
	RadiusMeters float64 `json:"radiusMeters"`
	TypeKey      string  `json:"typeKey"`
}

const nearbyPromptFmt = `Plan a nearby restaurant search from a user query.
radiusMeters: the search radius the wording implies ("walking distance" is small, "in the area" is larger), or 0 for the default.
typeKey: a single Places type like "restaurant", "cafe", "bakery", or "".
Respond with JSON only: {"radiusMeters":0,"typeKey":""}

Query: %q`

func (s *Service) mapNearby(ctx context.Context, in Input) (models.Mapping, error) {
	if in.UserLocation == nil {
		return models.Mapping{}, models.NewStageError(models.CodeMapperFailed, models.RouteNearby, "nearby route without user location", nil)
	}

	var wire nearbyPlanWire
	err := s.llm.GenerateJSON(ctx, "mapper_nearby", fmt.Sprintf(nearbyPromptFmt, in.Query), s.timeout, &wire)
	if err != nil {
		return models.Mapping{}, models.NewStageError(models.CodeMapperFailed, models.RouteNearby, "nearby route planning failed", err)
	}

	plan := &models.NearbyPlan{
		Center:         *in.UserLocation,
		RadiusMeters:   clampRadius(wire.RadiusMeters, defaultNearbyRadiusMeters),
		CuisineKey:     s.cuisine.Extract(in.Query),
		TypeKey:        wire.TypeKey,
		RegionCode:     in.Intent.RegionCandidate,
		SearchLanguage: in.Language.SearchLanguage,
	}
	return models.Mapping{Route: models.RouteNearby, Nearby: plan}, nil
}

type landmarkPlanWire struct {
	LandmarkText string  `json:"landmarkText"`
	RadiusMeters float64 `json:"radiusMeters"`
	TypeKey      string  `json:"typeKey"`
}

const landmarkPromptFmt = `A restaurant search query anchors on a named landmark. Extract it.
landmarkText: the landmark's name as written in the query.
radiusMeters: the radius the wording implies, or 0 for the default.
typeKey: a single Places type, or "".
Respond with JSON only: {"landmarkText":"","radiusMeters":0,"typeKey":""}

Query: %q`

func (s *Service) mapLandmark(ctx context.Context, in Input) (models.Mapping, error) {
	var wire landmarkPlanWire
	err := s.llm.GenerateJSON(ctx, "mapper_landmark", fmt.Sprintf(landmarkPromptFmt, in.Query), s.timeout, &wire)
	if err != nil {
		return models.Mapping{}, models.NewStageError(models.CodeMapperFailed, models.RouteLandmark, "landmark route planning failed", err)
	}

	plan := &models.LandmarkPlan{
		RadiusMeters:   clampRadius(wire.RadiusMeters, defaultLandmarkRadiusMeters),
		CuisineKey:     s.cuisine.Extract(in.Query),
		TypeKey:        wire.TypeKey,
		RegionCode:     in.Intent.RegionCandidate,
		SearchLanguage: in.Language.SearchLanguage,
	}

	entry := s.landmarks.Resolve(wire.LandmarkText)
	if entry == nil {
		entry = s.landmarks.Resolve(in.Query)
	}
	if entry != nil {
		loc := entry.Location
		plan.LandmarkID = entry.ID
		plan.ResolvedLocation = &loc
		if plan.RegionCode == "" {
			plan.RegionCode = entry.RegionCode
		}
		s.logger.Info("landmark_resolved_from_registry", zap.String("landmark_id", entry.ID))
	} else {
		plan.GeocodeQuery = wire.LandmarkText
		if plan.GeocodeQuery == "" {
			plan.GeocodeQuery = in.Query
		}
	}

	return models.Mapping{Route: models.RouteLandmark, Landmark: plan}, nil
}

// canonicalQuery picks the provider text: the LLM's trimmed query when it
// gave one, the raw query otherwise, both run through canonicalisation so
// rephrasings of the same ask share cache keys.
func (s *Service) canonicalQuery(ctx context.Context, in Input, llmText string) string {
	source := llmText
	if normalizeWhitespace(source) == "" {
		source = in.Query
	}
	if s.canonical == nil {
		return normalizeWhitespace(source)
	}
	return s.canonical.Canonicalize(ctx, source, in.Language.UILanguage, in.Intent.RegionCandidate)
}

// resolveBias orders the bias sources: an explicit city that geocodes wins
// with a tight radius, user coordinates bias a wider circle, otherwise the
// search is unbiased.
func (s *Service) resolveBias(ctx context.Context, in Input) *models.LocationBias {
	if in.Intent.CityText != "" && s.geocoder != nil {
		center, err := s.geocoder.GeocodeCity(ctx, in.Intent.CityText, in.Intent.RegionCandidate, in.Language.SearchLanguage)
		if err == nil {
			return &models.LocationBias{Center: center, RadiusMeters: cityBiasRadiusMeters}
		}
		s.logger.Warn("city_geocode_failed", zap.String("city", in.Intent.CityText), zap.Error(err))
	}
	if in.UserLocation != nil {
		return &models.LocationBias{Center: *in.UserLocation, RadiusMeters: userBiasRadiusMeters}
	}
	return nil
}

func normalizeStrictness(s string) models.Strictness {
	if models.Strictness(s) == models.StrictnessStrict {
		return models.StrictnessStrict
	}
	return models.StrictnessRelaxIfEmpty
}

func clampRadius(r, fallback float64) float64 {
	if r <= 0 {
		return fallback
	}
	if r < minRadiusMeters {
		return minRadiusMeters
	}
	if r > maxRadiusMeters {
		return maxRadiusMeters
	}
	return r
}
