// Package filters runs the two conditional LLM extraction stages
// (post-constraints and base soft filters) and owns the deterministic
// bucket tables and the skip rule.
package filters

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/domain/llm"
	"github.com/FACorreiaa/loci-search/internal/app/models"
)

type Service struct {
	llm     llm.Client
	scanner *KeywordScanner
	timeout time.Duration
	logger  *zap.Logger
}

func NewService(client llm.Client, timeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		llm:     client,
		scanner: NewKeywordScanner(),
		timeout: timeout,
		logger:  logger,
	}
}

// SkipDecision is the deterministic pre-LLM decision for a request.
type SkipDecision struct {
	SkipPostConstraints bool
	SkipBaseFilters     bool
}

/// Decide applies the skip rule: a generic query (gate YES, no explicit
// city, user has location) skips PostConstraints outright and skips
// BaseFilters unless the text carries filter vocabulary.
func (s *Service) Decide(query string, genericQuery bool) SkipDecision {
	if !genericQuery {
		return SkipDecision{}
	}
	d := SkipDecision{
		SkipPostConstraints: true,
		SkipBaseFilters:     !s.scanner.HasFilterKeywords(query),
	}
	if d.SkipPostConstraints {
		s.logger.Info("post_constraints_skipped", zap.String("reason", "generic_query"))
	}
	if d.SkipBaseFilters {
		s.logger.Info("base_filters_skipped", zap.String("reason", "no_filter_keywords"))
	}
	return d
}

const postConstraintsPromptFmt = `Extract the explicit user constraints from a restaurant search query.
Only list what the user literally asked for; do not infer.
Respond with JSON only: {"dietary":[],"accessibility":[],"mustHave":[]}

Query: %q`

// ExtractPostConstraints runs the post-constraints LLM call. Failures yield
// typed defaults, never an error.
func (s *Service) ExtractPostConstraints(ctx context.Context, query string) models.PostConstraints {
	ctx, span := otel.Tracer("FiltersService").Start(ctx, "ExtractPostConstraints")
	defer span.End()

	var out models.PostConstraints
	err := s.llm.GenerateJSON(ctx, "post_constraints", fmt.Sprintf(postConstraintsPromptFmt, query), s.timeout, &out)
	if err != nil {
		s.logger.Warn("post_constraints_fallback", zap.Error(err))
		span.SetAttributes(attribute.Bool("filters.fallback", true))
		return models.PostConstraints{}
	}
	return out
}

// rawBaseFilters is the LLM wire shape; buckets only, numbers are resolved
// by the tables in buckets.go.
type rawBaseFilters struct {
	OpenState            *string            `json:"openState"`
	OpenAt               *string            `json:"openAt"`
	OpenBetween          *models.TimeWindow `json:"openBetween"`
	PriceIntent          *string            `json:"priceIntent"`
	MinRatingBucket      *string            `json:"minRatingBucket"`
	MinReviewCountBucket *string            `json:"minReviewCountBucket"`
	Vegan                bool               `json:"vegan"`
	Vegetarian           bool               `json:"vegetarian"`
	GlutenFree           bool               `json:"glutenFree"`
	Kosher               bool               `json:"kosher"`
	Halal                bool               `json:"halal"`
}

const baseFiltersPromptFmt = `Extract bucketed soft filters from a restaurant search query.
Use null for anything not mentioned. Buckets only, never numbers:
openState: "OPEN_NOW" or null. openAt: RFC3339 or null. openBetween: {"startMin","endMin"} minutes from midnight, or null.
priceIntent: "CHEAP"|"MODERATE"|"EXPENSIVE"|null.
minRatingBucket: "R35"|"R40"|"R45"|null. minReviewCountBucket: "C25"|"C100"|"C500"|null.
Dietary booleans: vegan, vegetarian, glutenFree, kosher, halal.
Respond with JSON only.

Query: %q`

// ExtractBaseFilters runs the base-filters LLM call. Failures yield empty
// soft filters, never an error.
func (s *Service) ExtractBaseFilters(ctx context.Context, query string) models.SoftFilters {
	ctx, span := otel.Tracer("FiltersService").Start(ctx, "ExtractBaseFilters")
	defer span.End()

	var raw rawBaseFilters
	err := s.llm.GenerateJSON(ctx, "base_filters", fmt.Sprintf(baseFiltersPromptFmt, query), s.timeout, &raw)
	if err != nil {
		s.logger.Warn("base_filters_fallback", zap.Error(err))
		span.SetAttributes(attribute.Bool("filters.fallback", true))
		return models.SoftFilters{}
	}
	return normalizeBaseFilters(raw)
}

func normalizeBaseFilters(raw rawBaseFilters) models.SoftFilters {
	sf := models.SoftFilters{
		OpenBetween: raw.OpenBetween,
		Vegan:       raw.Vegan,
		Vegetarian:  raw.Vegetarian,
		GlutenFree:  raw.GlutenFree,
		Kosher:      raw.Kosher,
		Halal:       raw.Halal,
	}

	if raw.OpenState != nil && *raw.OpenState == string(models.OpenNow) {
		v := models.OpenNow
		sf.OpenState = &v
	}
	if raw.OpenAt != nil {
		if ts, err := time.Parse(time.RFC3339, *raw.OpenAt); err == nil {
			sf.OpenAt = &ts
		}
	}
	if raw.PriceIntent != nil {
		switch p := models.PriceIntent(*raw.PriceIntent); p {
		case models.PriceCheap, models.PriceModerate, models.PriceExpensive:
			sf.PriceIntent = &p
		}
	}
	if raw.MinRatingBucket != nil {
		if b := models.RatingBucket(*raw.MinRatingBucket); ratingThresholds[b] != 0 {
			sf.MinRating = &b
		}
	}
	if raw.MinReviewCountBucket != nil {
		if b := models.ReviewCountBucket(*raw.MinReviewCountBucket); reviewThresholds[b] != 0 {
			sf.MinReviewCount = &b
		}
	}
	return sf
}
