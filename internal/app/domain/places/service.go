package places

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/models"
	"github.com/FACorreiaa/loci-search/internal/pkg/cache"
)

// providerAPI is the outbound surface the stage needs; *Client implements
// it, tests substitute a fake.
type providerAPI interface {
	TextSearch(ctx context.Context, plan models.TextPlan) ([]models.Place, error)
	NearbySearch(ctx context.Context, center models.LatLng, radiusMeters float64, includedTypes []string, regionCode, language string) ([]models.Place, error)
	Geocode(ctx context.Context, text, regionCode, language string) (models.LatLng, error)
}

// Service executes a provider plan through the tiered caches. It also
// implements the mapper's Geocoder.
type Service struct {
	api    providerAPI
	caches *cache.Manager
	logger *zap.Logger
}

func NewService(api providerAPI, caches *cache.Manager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, caches: caches, logger: logger}
}

// Result carries the fetched pool plus where it came from, for the meta
// source field and the requery bookkeeping.
type Result struct {
	Places []models.Place
	Source string
}

// Execute runs the plan for its route. Provider failures come back as fatal
// PROVIDER_FAILED stage errors.
func (s *Service) Execute(ctx context.Context, mapping models.Mapping, lang models.LanguageContext) (Result, error) {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "Execute")
	defer span.End()
	span.SetAttributes(attribute.String("places.route", string(mapping.Route)))

	outbound := mapping.SearchLanguageOf()
	s.logger.Info("places_call_language",
		zap.String("provider_method", providerMethodFor(mapping.Route)),
		zap.String("region_code", mapping.RegionCodeOf()),
		zap.String("search_language", outbound),
		zap.String("query_language", lang.QueryLanguage),
		zap.String("ui_language", lang.UILanguage),
	)
	if outbound != lang.SearchLanguage {
		// The plan language is derived from the language context; divergence
		// means a mapper bug, not a user condition.
		s.logger.Error("places_language_mismatch",
			zap.String("plan_language", outbound),
			zap.String("context_language", lang.SearchLanguage),
		)
	}

	var (
		result Result
		err    error
	)
	switch mapping.Route {
	case models.RouteNearby:
		result, err = s.executeNearby(ctx, mapping.Nearby)
	case models.RouteLandmark:
		result, err = s.executeLandmark(ctx, mapping.Landmark)
	default:
		result, err = s.executeText(ctx, mapping.Text)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, models.NewStageError(models.CodeProviderFailed, mapping.Route, "provider search failed", err)
	}

	span.SetAttributes(
		attribute.Int("places.count", len(result.Places)),
		attribute.String("places.source", result.Source),
	)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// providerMethodFor names the outbound API call each route maps to; landmark
// plans search nearby around the resolved anchor.
func providerMethodFor(route models.Route) string {
	switch route {
	case models.RouteNearby, models.RouteLandmark:
		return "searchNearby"
	default:
		return "searchText"
	}
}

func (s *Service) executeText(ctx context.Context, plan *models.TextPlan) (Result, error) {
	if plan == nil {
		return Result{}, fmt.Errorf("text plan missing")
	}

	builder := cache.NewCacheKeyBuilder(s.logger).
		AddQuery(plan.TextQuery).
		AddRegion(plan.RegionCode).
		AddSearchLanguage(plan.SearchLanguage)
	if plan.LocationBias != nil {
		builder.AddLocationBucket(plan.LocationBias.Center.Lat, plan.LocationBias.Center.Lng).
			Add("bias_radius", plan.LocationBias.RadiusMeters)
	}
	key := builder.BuildOrDefault()

	places, source, err := s.caches.Places.GetOrFetch(ctx, key, func(ctx context.Context) ([]models.Place, error) {
		return s.api.TextSearch(ctx, *plan)
	})
	return Result{Places: places, Source: source}, err
}

func (s *Service) executeNearby(ctx context.Context, plan *models.NearbyPlan) (Result, error) {
	if plan == nil {
		return Result{}, fmt.Errorf("nearby plan missing")
	}

	types := includedTypesFor(plan.CuisineKey, plan.TypeKey)
	key := cache.NewCacheKeyBuilder(s.logger).
		Add("kind", "nearby").
		AddLocationBucket(plan.Center.Lat, plan.Center.Lng).
		Add("radius", plan.RadiusMeters).
		Add("types", types).
		AddRegion(plan.RegionCode).
		AddSearchLanguage(plan.SearchLanguage).
		BuildOrDefault()

	places, source, err := s.caches.Places.GetOrFetch(ctx, key, func(ctx context.Context) ([]models.Place, error) {
		return s.api.NearbySearch(ctx, plan.Center, plan.RadiusMeters, types, plan.RegionCode, plan.SearchLanguage)
	})
	return Result{Places: places, Source: source}, err
}

func (s *Service) executeLandmark(ctx context.Context, plan *models.LandmarkPlan) (Result, error) {
	if plan == nil {
		return Result{}, fmt.Errorf("landmark plan missing")
	}

	anchor, anchorKey, err := s.resolveAnchor(ctx, plan)
	if err != nil {
		return Result{}, err
	}

	cuisineOrType := plan.CuisineKey
	if cuisineOrType == "" {
		cuisineOrType = plan.TypeKey
	}
	key := fmt.Sprintf("landmark_search:%s:%.0f:%s:%s", anchorKey, plan.RadiusMeters, cuisineOrType, plan.RegionCode)

	types := includedTypesFor(plan.CuisineKey, plan.TypeKey)
	places, source, err := s.caches.Places.GetOrFetch(ctx, key, func(ctx context.Context) ([]models.Place, error) {
		return s.api.NearbySearch(ctx, anchor, plan.RadiusMeters, types, plan.RegionCode, plan.SearchLanguage)
	})
	return Result{Places: places, Source: source}, err
}

// resolveAnchor finds the landmark coordinates: the registry's resolved
// location when present, the long-lived landmark cache next, a geocode call
// last. The anchor key feeds the search cache key.
func (s *Service) resolveAnchor(ctx context.Context, plan *models.LandmarkPlan) (models.LatLng, string, error) {
	if plan.ResolvedLocation != nil {
		return *plan.ResolvedLocation, plan.LandmarkID, nil
	}

	cacheKey := "landmark:" + plan.GeocodeQuery
	if cached, found := s.caches.Landmarks.Get(cacheKey); found {
		return cached.(models.LatLng), plan.GeocodeQuery, nil
	}

	loc, err := s.api.Geocode(ctx, plan.GeocodeQuery, plan.RegionCode, plan.SearchLanguage)
	if err != nil {
		return models.LatLng{}, "", fmt.Errorf("resolve landmark %q: %w", plan.GeocodeQuery, err)
	}
	s.caches.Landmarks.Set(cacheKey, loc, 0) // 0 uses the cache's default TTL
	s.logger.Info("landmark_resolved_by_geocode", zap.String("query", plan.GeocodeQuery))
	return loc, plan.GeocodeQuery, nil
}

// GeocodeCity implements the mapper's Geocoder through the geocode cache.
func (s *Service) GeocodeCity(ctx context.Context, cityText, regionCode, language string) (models.LatLng, error) {
	key := cache.NewCacheKeyBuilder(s.logger).
		Add("kind", "city").
		AddQuery(cityText).
		AddRegion(regionCode).
		AddSearchLanguage(language).
		BuildOrDefault()

	loc, _, err := s.caches.Geocode.GetOrFetch(ctx, key, func(ctx context.Context) (models.LatLng, error) {
		start := time.Now()
		center, err := s.api.Geocode(ctx, cityText, regionCode, language)
		if err != nil {
			return models.LatLng{}, err
		}
		s.logger.Debug("city_geocoded",
			zap.String("city", cityText),
			zap.Duration("took", time.Since(start)),
		)
		return center, nil
	})
	return loc, err
}
