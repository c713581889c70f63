// Package places executes provider plans against the Places API (New) and
// normalises the wire shapes the rest of the pipeline never sees.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/models"
	"github.com/FACorreiaa/loci-search/internal/app/observability/metrics"
	"github.com/FACorreiaa/loci-search/internal/pkg/config"
)

const (
	maxResultCount = 20

	// One mask for both endpoints; everything downstream filtering and
	// ranking needs, nothing more.
	fieldMask = "places.id,places.displayName,places.types,places.formattedAddress," +
		"places.location,places.rating,places.userRatingCount,places.priceLevel," +
		"places.currentOpeningHours.openNow,places.regularOpeningHours.periods"
)

// Client is the low-level Places HTTP client. It knows nothing about caches
// or plans; it sends one request and normalises one response.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
	metrics *metrics.AppMetrics
}

func NewClient(cfg config.ProviderConfig, m *metrics.AppMetrics, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		metrics: m,
	}
}

type wireLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type wireCircle struct {
	Center wireLatLng `json:"center"`
	Radius float64    `json:"radius"`
}

type wireArea struct {
	Circle wireCircle `json:"circle"`
}

type searchTextBody struct {
	TextQuery      string    `json:"textQuery"`
	LanguageCode   string    `json:"languageCode,omitempty"`
	RegionCode     string    `json:"regionCode,omitempty"`
	IncludedType   string    `json:"includedType,omitempty"`
	MaxResultCount int       `json:"maxResultCount"`
	LocationBias   *wireArea `json:"locationBias,omitempty"`
}

type searchNearbyBody struct {
	LanguageCode        string   `json:"languageCode,omitempty"`
	RegionCode          string   `json:"regionCode,omitempty"`
	IncludedTypes       []string `json:"includedTypes,omitempty"`
	MaxResultCount      int      `json:"maxResultCount"`
	RankPreference      string   `json:"rankPreference"`
	LocationRestriction wireArea `json:"locationRestriction"`
}

// TextSearch runs places:searchText for a text plan.
func (c *Client) TextSearch(ctx context.Context, plan models.TextPlan) ([]models.Place, error) {
	body := searchTextBody{
		TextQuery:      plan.TextQuery,
		LanguageCode:   plan.SearchLanguage,
		RegionCode:     plan.RegionCode,
		IncludedType:   primaryIncludedType(plan.CuisineKey, plan.TypeHint),
		MaxResultCount: maxResultCount,
	}
	if plan.LocationBias != nil {
		body.LocationBias = &wireArea{Circle: wireCircle{
			Center: wireLatLng{Latitude: plan.LocationBias.Center.Lat, Longitude: plan.LocationBias.Center.Lng},
			Radius: plan.LocationBias.RadiusMeters,
		}}
	}
	return c.call(ctx, "places:searchText", body)
}

// NearbySearch runs places:searchNearby ranked by distance.
func (c *Client) NearbySearch(ctx context.Context, center models.LatLng, radiusMeters float64, includedTypes []string, regionCode, language string) ([]models.Place, error) {
	body := searchNearbyBody{
		LanguageCode:   language,
		RegionCode:     regionCode,
		IncludedTypes:  includedTypes,
		MaxResultCount: maxResultCount,
		RankPreference: "DISTANCE",
		LocationRestriction: wireArea{Circle: wireCircle{
			Center: wireLatLng{Latitude: center.Lat, Longitude: center.Lng},
			Radius: radiusMeters,
		}},
	}
	return c.call(ctx, "places:searchNearby", body)
}

// Geocode resolves free text (a city or a landmark) to coordinates via a
// single-result text search.
func (c *Client) Geocode(ctx context.Context, text, regionCode, language string) (models.LatLng, error) {
	results, err := c.call(ctx, "places:searchText", searchTextBody{
		TextQuery:      text,
		LanguageCode:   language,
		RegionCode:     regionCode,
		MaxResultCount: 1,
	})
	if err != nil {
		return models.LatLng{}, err
	}
	if len(results) == 0 {
		return models.LatLng{}, fmt.Errorf("geocode %q: no results", text)
	}
	return results[0].Location, nil
}

type searchResponse struct {
	Places []apiPlace `json:"places"`
}

func (c *Client) call(ctx context.Context, endpoint string, body interface{}) ([]models.Place, error) {
	ctx, span := otel.Tracer("PlacesClient").Start(ctx, "Call")
	defer span.End()
	span.SetAttributes(attribute.String("places.endpoint", endpoint))

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.record(ctx, endpoint, "error", elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
		return nil, fmt.Errorf("%s call failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.record(ctx, endpoint, "error", elapsed)
		err := fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, snippet)
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider status error")
		return nil, err
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.record(ctx, endpoint, "error", elapsed)
		return nil, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	c.record(ctx, endpoint, "ok", elapsed)

	places := make([]models.Place, 0, len(decoded.Places))
	for _, p := range decoded.Places {
		places = append(places, p.normalize())
	}
	span.SetAttributes(attribute.Int("places.count", len(places)))
	span.SetStatus(codes.Ok, "")
	return places, nil
}

func (c *Client) record(ctx context.Context, endpoint, outcome string, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", outcome),
	)
	c.metrics.ProviderCallsTotal.Add(ctx, 1, attrs)
	c.metrics.ProviderCallDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// primaryIncludedType picks the single includedType searchText accepts, from
// the same table the nearby route uses.
func primaryIncludedType(cuisineKey, typeHint string) string {
	if cuisineKey == "" && typeHint == "" {
		return ""
	}
	types := includedTypesFor(cuisineKey, typeHint)
	if len(types) == 0 {
		return ""
	}
	return types[0]
}
