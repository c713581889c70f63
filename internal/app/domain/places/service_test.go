package places

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-search/internal/app/models"
	"github.com/FACorreiaa/loci-search/internal/pkg/cache"
	"github.com/FACorreiaa/loci-search/internal/pkg/config"
)

type fakeAPI struct {
	textCalls    int
	nearbyCalls  int
	geocodeCalls int
	places       []models.Place
	geocodeLoc   models.LatLng
	err          error
}

func (f *fakeAPI) TextSearch(ctx context.Context, plan models.TextPlan) ([]models.Place, error) {
	f.textCalls++
	return f.places, f.err
}

func (f *fakeAPI) NearbySearch(ctx context.Context, center models.LatLng, radius float64, types []string, region, language string) ([]models.Place, error) {
	f.nearbyCalls++
	return f.places, f.err
}

func (f *fakeAPI) Geocode(ctx context.Context, text, region, language string) (models.LatLng, error) {
	f.geocodeCalls++
	if f.err != nil {
		return models.LatLng{}, f.err
	}
	return f.geocodeLoc, nil
}

func testCaches() *cache.Manager {
	return cache.NewManager(config.CacheConfig{
		L1MaxEntries: 100,
		L1MaxTTL:     time.Minute,
		L2DefaultTTL: time.Minute,
		CanonicalTTL: time.Minute,
		LandmarkTTL:  time.Minute,
		GeocodeTTL:   time.Minute,
	}, nil, nil)
}

func langHE() models.LanguageContext {
	return models.LanguageContext{UILanguage: "en", QueryLanguage: "he", SearchLanguage: "he"}
}

func textMapping() models.Mapping {
	return models.Mapping{Route: models.RouteTextSearch, Text: &models.TextPlan{
		TextQuery: "איטלקי בגדרה", RegionCode: "IL", SearchLanguage: "he",
	}}
}

func TestExecuteTextCachesSecondCall(t *testing.T) {
	api := &fakeAPI{places: []models.Place{{PlaceID: "a"}, {PlaceID: "b"}}}
	s := NewService(api, testCaches(), nil)

	first, err := s.Execute(context.Background(), textMapping(), langHE())
	require.NoError(t, err)
	assert.Equal(t, cache.SourceFetch, first.Source)
	assert.Len(t, first.Places, 2)

	second, err := s.Execute(context.Background(), textMapping(), langHE())
	require.NoError(t, err)
	assert.Equal(t, cache.SourceL1, second.Source)
	assert.Equal(t, 1, api.textCalls)
}

func TestExecuteDifferentLanguageDifferentCacheKey(t *testing.T) {
	api := &fakeAPI{places: []models.Place{{PlaceID: "a"}}}
	s := NewService(api, testCaches(), nil)

	_, err := s.Execute(context.Background(), textMapping(), langHE())
	require.NoError(t, err)

	english := textMapping()
	english.Text.SearchLanguage = "en"
	_, err = s.Execute(context.Background(), english, models.LanguageContext{SearchLanguage: "en"})
	require.NoError(t, err)

	assert.Equal(t, 2, api.textCalls)
}

func TestExecuteProviderErrorIsTypedFatal(t *testing.T) {
	api := &fakeAPI{err: errors.New("upstream 500")}
	s := NewService(api, testCaches(), nil)

	_, err := s.Execute(context.Background(), textMapping(), langHE())

	var se *models.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.CodeProviderFailed, se.Code)
	assert.True(t, se.Fatal)
	assert.Equal(t, models.RouteTextSearch, se.Route)
}

func TestExecuteNearby(t *testing.T) {
	api := &fakeAPI{places: []models.Place{{PlaceID: "n1"}}}
	s := NewService(api, testCaches(), nil)

	m := models.Mapping{Route: models.RouteNearby, Nearby: &models.NearbyPlan{
		Center: models.LatLng{Lat: 32.08, Lng: 34.78}, RadiusMeters: 2000,
		CuisineKey: "sushi", RegionCode: "IL", SearchLanguage: "he",
	}}
	got, err := s.Execute(context.Background(), m, langHE())

	require.NoError(t, err)
	assert.Len(t, got.Places, 1)
	assert.Equal(t, 1, api.nearbyCalls)
}

func TestExecuteLandmarkRegistryAnchorSkipsGeocode(t *testing.T) {
	api := &fakeAPI{places: []models.Place{{PlaceID: "l1"}}}
	s := NewService(api, testCaches(), nil)

	loc := models.LatLng{Lat: 48.8584, Lng: 2.2945}
	m := models.Mapping{Route: models.RouteLandmark, Landmark: &models.LandmarkPlan{
		LandmarkID: "eiffel-tower-paris", ResolvedLocation: &loc,
		RadiusMeters: 500, CuisineKey: "french", RegionCode: "FR", SearchLanguage: "he",
	}}
	got, err := s.Execute(context.Background(), m, langHE())

	require.NoError(t, err)
	assert.Len(t, got.Places, 1)
	assert.Equal(t, 0, api.geocodeCalls)
	assert.Equal(t, 1, api.nearbyCalls)
}

func TestExecuteLandmarkGeocodeCachedAcrossCalls(t *testing.T) {
	api := &fakeAPI{places: []models.Place{{PlaceID: "l1"}}, geocodeLoc: models.LatLng{Lat: 32.07, Lng: 34.79}}
	caches := testCaches()
	s := NewService(api, caches, nil)

	m := models.Mapping{Route: models.RouteLandmark, Landmark: &models.LandmarkPlan{
		GeocodeQuery: "Dizengoff Center", RadiusMeters: 1500, TypeKey: "cafe",
		RegionCode: "IL", SearchLanguage: "he",
	}}

	_, err := s.Execute(context.Background(), m, langHE())
	require.NoError(t, err)
	assert.Equal(t, 1, api.geocodeCalls)

	// A different radius misses the search cache but reuses the anchor.
	wider := models.Mapping{Route: models.RouteLandmark, Landmark: &models.LandmarkPlan{
		GeocodeQuery: "Dizengoff Center", RadiusMeters: 3000, TypeKey: "cafe",
		RegionCode: "IL", SearchLanguage: "he",
	}}
	_, err = s.Execute(context.Background(), wider, langHE())
	require.NoError(t, err)
	assert.Equal(t, 1, api.geocodeCalls)
	assert.Equal(t, 2, api.nearbyCalls)
}

func TestProviderMethodAndRegionPerRoute(t *testing.T) {
	assert.Equal(t, "searchText", providerMethodFor(models.RouteTextSearch))
	assert.Equal(t, "searchNearby", providerMethodFor(models.RouteNearby))
	assert.Equal(t, "searchNearby", providerMethodFor(models.RouteLandmark))

	assert.Equal(t, "IL", textMapping().RegionCodeOf())
	assert.Empty(t, models.Mapping{}.RegionCodeOf())
}

func TestGeocodeCityCached(t *testing.T) {
	api := &fakeAPI{geocodeLoc: models.LatLng{Lat: 31.814, Lng: 34.778}}
	s := NewService(api, testCaches(), nil)

	first, err := s.GeocodeCity(context.Background(), "גדרה", "IL", "he")
	require.NoError(t, err)
	assert.InDelta(t, 31.814, first.Lat, 0.0001)

	_, err = s.GeocodeCity(context.Background(), "גדרה", "IL", "he")
	require.NoError(t, err)
	assert.Equal(t, 1, api.geocodeCalls)
}
