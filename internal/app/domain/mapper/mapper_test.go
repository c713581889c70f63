package mapper

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-search/internal/app/domain/intent"
	"github.com/FACorreiaa/loci-search/internal/app/models"
)

// fakeLLM answers per stage so one test can drive the plan call and the
// canonical rewrite independently.
type fakeLLM struct {
	responses map[string]string
	errs      map[string]error
	calls     map[string]int
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{responses: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, stage, prompt string, timeout time.Duration, out interface{}) error {
	f.calls[stage]++
	if err := f.errs[stage]; err != nil {
		return err
	}
	resp, ok := f.responses[stage]
	if !ok {
		return errors.New("no canned response for stage " + stage)
	}
	return json.Unmarshal([]byte(resp), out)
}

func (f *fakeLLM) GenerateText(ctx context.Context, stage, prompt string, timeout time.Duration) (string, error) {
	return "", errors.New("not used")
}

type fakeGeocoder struct {
	loc   models.LatLng
	err   error
	calls int
}

func (g *fakeGeocoder) GeocodeCity(ctx context.Context, city, region, language string) (models.LatLng, error) {
	g.calls++
	return g.loc, g.err
}

func hebrewContext() models.LanguageContext {
	return models.LanguageContext{
		UILanguage:        models.LangEnglish,
		QueryLanguage:     models.LangHebrew,
		AssistantLanguage: models.LangHebrew,
		SearchLanguage:    models.LangHebrew,
	}
}

func TestMapTextExplicitCityBiasBeatsUserLocation(t *testing.T) {
	client := newFakeLLM()
	client.responses["mapper_text"] = `{"textQuery":"איטלקי בגדרה","requiredTerms":[],"preferredTerms":[],"strictness":"RELAX_IF_EMPTY","typeHint":"restaurant"}`
	geo := &fakeGeocoder{loc: models.LatLng{Lat: 31.814, Lng: 34.778}}
	s := NewService(client, nil, geo, time.Second, nil)

	userLoc := &models.LatLng{Lat: 32.08, Lng: 34.78}
	m, err := s.Map(context.Background(), Input{
		Query: "מסעדה איטלקית בגדרה",
		Intent: intent.Result{
			Route: models.RouteTextSearch, Reason: models.ReasonExplicitCity,
			RegionCandidate: "IL", CityText: "גדרה",
		},
		Language:     hebrewContext(),
		UserLocation: userLoc,
	})

	require.NoError(t, err)
	require.NotNil(t, m.Text)
	assert.Equal(t, models.RouteTextSearch, m.Route)
	assert.Equal(t, "italian", m.Text.CuisineKey)
	assert.Equal(t, models.LangHebrew, m.Text.SearchLanguage)
	assert.Equal(t, "IL", m.Text.RegionCode)
	require.NotNil(t, m.Text.LocationBias)
	assert.Equal(t, geo.loc, m.Text.LocationBias.Center)
	assert.Equal(t, float64(cityBiasRadiusMeters), m.Text.LocationBias.RadiusMeters)
}

func TestMapTextGeocodeFailureFallsBackToUserBias(t *testing.T) {
	client := newFakeLLM()
	client.responses["mapper_text"] = `{"textQuery":"sushi in Gedera","strictness":"STRICT"}`
	geo := &fakeGeocoder{err: errors.New("geocode down")}
	s := NewService(client, nil, geo, time.Second, nil)

	userLoc := &models.LatLng{Lat: 32.08, Lng: 34.78}
	m, err := s.Map(context.Background(), Input{
		Query:        "sushi in Gedera",
		Intent:       intent.Result{Route: models.RouteTextSearch, CityText: "Gedera"},
		Language:     models.LanguageContext{UILanguage: "en", SearchLanguage: "en"},
		UserLocation: userLoc,
	})

	require.NoError(t, err)
	require.NotNil(t, m.Text.LocationBias)
	assert.Equal(t, *userLoc, m.Text.LocationBias.Center)
	assert.Equal(t, float64(userBiasRadiusMeters), m.Text.LocationBias.RadiusMeters)
	assert.Equal(t, models.StrictnessStrict, m.Text.Strictness)
}

func TestMapTextNoLocationNoBias(t *testing.T) {
	client := newFakeLLM()
	client.responses["mapper_text"] = `{"textQuery":"best pizza"}`
	s := NewService(client, nil, nil, time.Second, nil)

	m, err := s.Map(context.Background(), Input{
		Query:    "best pizza",
		Intent:   intent.Result{Route: models.RouteTextSearch},
		Language: models.LanguageContext{SearchLanguage: "en"},
	})

	require.NoError(t, err)
	assert.Nil(t, m.Text.LocationBias)
	assert.Equal(t, "pizza", m.Text.CuisineKey)
	assert.Equal(t, models.StrictnessRelaxIfEmpty, m.Text.Strictness)
}

func TestMapTextLLMFailureIsFatal(t *testing.T) {
	client := newFakeLLM()
	client.errs["mapper_text"] = errors.New("deadline exceeded")
	s := NewService(client, nil, nil, time.Second, nil)

	_, err := s.Map(context.Background(), Input{
		Query:    "pizza",
		Intent:   intent.Result{Route: models.RouteTextSearch},
		Language: models.LanguageContext{SearchLanguage: "en"},
	})

	var se *models.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.CodeMapperFailed, se.Code)
	assert.True(t, se.Fatal)
}

func TestMapNearbyDefaultsAndClamp(t *testing.T) {
	client := newFakeLLM()
	client.responses["mapper_nearby"] = `{"radiusMeters":0,"typeKey":""}`
	s := NewService(client, nil, nil, time.Second, nil)

	loc := &models.LatLng{Lat: 32.08, Lng: 34.78}
	m, err := s.Map(context.Background(), Input{
		Query:        "סושי לידי",
		Intent:       intent.Result{Route: models.RouteNearby, Reason: models.ReasonNearbyIntent},
		Language:     hebrewContext(),
		UserLocation: loc,
	})

	require.NoError(t, err)
	require.NotNil(t, m.Nearby)
	assert.Equal(t, *loc, m.Nearby.Center)
	assert.Equal(t, float64(defaultNearbyRadiusMeters), m.Nearby.RadiusMeters)
	assert.Equal(t, "sushi", m.Nearby.CuisineKey)

	client.responses["mapper_nearby"] = `{"radiusMeters":900000,"typeKey":""}`
	m, err = s.Map(context.Background(), Input{
		Query:        "sushi somewhere in the area",
		Intent:       intent.Result{Route: models.RouteNearby},
		Language:     models.LanguageContext{SearchLanguage: "en"},
		UserLocation: loc,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(maxRadiusMeters), m.Nearby.RadiusMeters)
}

func TestMapNearbyWithoutLocationFails(t *testing.T) {
	s := NewService(newFakeLLM(), nil, nil, time.Second, nil)

	_, err := s.Map(context.Background(), Input{
		Query:    "sushi near me",
		Intent:   intent.Result{Route: models.RouteNearby},
		Language: models.LanguageContext{SearchLanguage: "en"},
	})

	var se *models.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.CodeMapperFailed, se.Code)
}

func TestMapLandmarkRegistryHit(t *testing.T) {
	client := newFakeLLM()
	client.responses["mapper_landmark"] = `{"landmarkText":"מגדל אייפל","radiusMeters":500,"typeKey":""}`
	s := NewService(client, nil, nil, time.Second, nil)

	m, err := s.Map(context.Background(), Input{
		Query:    "מסעדות ליד מגדל אייפל",
		Intent:   intent.Result{Route: models.RouteLandmark, Reason: models.ReasonLandmarkMentioned},
		Language: hebrewContext(),
	})

	require.NoError(t, err)
	require.NotNil(t, m.Landmark)
	assert.Equal(t, "eiffel-tower-paris", m.Landmark.LandmarkID)
	require.NotNil(t, m.Landmark.ResolvedLocation)
	assert.InDelta(t, 48.8584, m.Landmark.ResolvedLocation.Lat, 0.0001)
	assert.Equal(t, "FR", m.Landmark.RegionCode)
	assert.Empty(t, m.Landmark.GeocodeQuery)
	assert.Equal(t, float64(500), m.Landmark.RadiusMeters)
	assert.Equal(t, models.LangHebrew, m.Landmark.SearchLanguage)
}

func TestMapLandmarkUnknownFallsBackToGeocodeQuery(t *testing.T) {
	client := newFakeLLM()
	client.responses["mapper_landmark"] = `{"landmarkText":"Dizengoff Center","radiusMeters":0,"typeKey":"cafe"}`
	s := NewService(client, nil, nil, time.Second, nil)

	m, err := s.Map(context.Background(), Input{
		Query:    "cafes near Dizengoff Center",
		Intent:   intent.Result{Route: models.RouteLandmark, RegionCandidate: "IL"},
		Language: models.LanguageContext{SearchLanguage: "en"},
	})

	require.NoError(t, err)
	assert.Empty(t, m.Landmark.LandmarkID)
	assert.Nil(t, m.Landmark.ResolvedLocation)
	assert.Equal(t, "Dizengoff Center", m.Landmark.GeocodeQuery)
	assert.Equal(t, "IL", m.Landmark.RegionCode)
	assert.Equal(t, float64(defaultLandmarkRadiusMeters), m.Landmark.RadiusMeters)
	assert.Equal(t, "cafe", m.Landmark.TypeKey)
}

func TestCanonicalizeRewriteGateAndCache(t *testing.T) {
	client := newFakeLLM()
	client.responses["canonical_query"] = `{"canonical":"איטלקי בגדרה","confidence":0.92}`
	cache := gocache.New(time.Hour, time.Hour)
	c := NewCanonicalizer(client, cache, time.Hour, time.Second, nil)

	got := c.Canonicalize(context.Background(), "מסעדה  איטלקית טובה  בגדרה", "he", "IL")
	assert.Equal(t, "איטלקי בגדרה", got)

	// Second call is served from cache, no further LLM traffic.
	got = c.Canonicalize(context.Background(), "מסעדה  איטלקית טובה  בגדרה", "he", "IL")
	assert.Equal(t, "איטלקי בגדרה", got)
	assert.Equal(t, 1, client.calls["canonical_query"])
}

func TestCanonicalizeLowConfidenceKeepsNormalizedQuery(t *testing.T) {
	client := newFakeLLM()
	client.responses["canonical_query"] = `{"canonical":"something else","confidence":0.4}`
	c := NewCanonicalizer(client, nil, time.Hour, time.Second, nil)

	got := c.Canonicalize(context.Background(), "  good   sushi places ", "en", "")
	assert.Equal(t, "good sushi places", got)
}

func TestCanonicalizeLLMErrorKeepsNormalizedQuery(t *testing.T) {
	client := newFakeLLM()
	client.errs["canonical_query"] = errors.New("unavailable")
	c := NewCanonicalizer(client, nil, time.Hour, time.Second, nil)

	got := c.Canonicalize(context.Background(), "pizza  in rome", "en", "IT")
	assert.Equal(t, "pizza in rome", got)
}

func TestCuisineExtractor(t *testing.T) {
	e := NewCuisineExtractor()

	tests := []struct {
		query string
		want  string
	}{
		{"מסעדה איטלקית בגדרה", "italian"},
		{"good sushi near me", "sushi"},
		{"где поесть хумус", "hummus"},
		{"un bon restaurant français", "french"},
		{"somewhere to eat", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, e.Extract(tc.query), "query %q", tc.query)
	}
}

func TestIncludedTypes(t *testing.T) {
	assert.Equal(t, []string{"italian_restaurant", "restaurant"}, IncludedTypes("italian", ""))
	assert.Equal(t, []string{"pizza_restaurant", "restaurant"}, IncludedTypes("pizza", ""))
	assert.Equal(t, []string{"cafe"}, IncludedTypes("cafe", ""))
	assert.Equal(t, []string{"bakery"}, IncludedTypes("", "bakery"))
	assert.Equal(t, []string{"restaurant"}, IncludedTypes("", ""))
}

func TestLandmarkRegistryLookup(t *testing.T) {
	r := NewLandmarkRegistry()

	entry := r.Resolve("restaurants near big ben please")
	require.NotNil(t, entry)
	assert.Equal(t, "big-ben-london", entry.ID)

	assert.Nil(t, r.Resolve("restaurants near my office"))

	byID := r.Lookup("western-wall-jerusalem")
	require.NotNil(t, byID)
	assert.Equal(t, "IL", byID.RegionCode)
}
