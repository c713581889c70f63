package mapper

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/domain/llm"
)

const canonicalConfidenceGate = 0.7

// Canonicalizer produces a query string stable across trivial rephrasings:
// the cuisine term plus the explicit city when one is present. The LLM
// rewrite is optional and gated on confidence; the deterministic
// normalisation is always the floor.
type Canonicalizer struct {
	llm     llm.Client
	cache   *gocache.Cache
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

func NewCanonicalizer(client llm.Client, cache *gocache.Cache, ttl, timeout time.Duration, logger *zap.Logger) *Canonicalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Canonicalizer{llm: client, cache: cache, ttl: ttl, timeout: timeout, logger: logger}
}

type canonicalRewrite struct {
	Canonical  string  `json:"canonical"`
	Confidence float64 `json:"confidence"`
}

const canonicalPromptFmt = `Rewrite a restaurant search query into its minimal canonical form:
keep only the cuisine or food term and, if present, the explicit city, in the query's own language.
Example: "מסעדה איטלקית טובה בגדרה" -> "איטלקי בגדרה". "good sushi places" -> "sushi".
Respond with JSON only: {"canonical": string, "confidence": number in [0,1]}

Query: %q`

// Canonicalize returns the canonical query text, cached for 24h per
// (query, uiLanguage, regionCode).
func (c *Canonicalizer) Canonicalize(ctx context.Context, query, uiLanguage, regionCode string) string {
	normalized := normalizeWhitespace(query)
	key := canonicalCacheKey(normalized, uiLanguage, regionCode)

	if c.cache != nil {
		if cached, found := c.cache.Get(key); found {
			return cached.(string)
		}
	}

	result := normalized
	var rewrite canonicalRewrite
	err := c.llm.GenerateJSON(ctx, "canonical_query", fmt.Sprintf(canonicalPromptFmt, normalized), c.timeout, &rewrite)
	switch {
	case err != nil:
		c.logger.Debug("canonical_rewrite_unavailable", zap.Error(err))
	case rewrite.Confidence < canonicalConfidenceGate || strings.TrimSpace(rewrite.Canonical) == "":
		c.logger.Debug("canonical_rewrite_below_gate", zap.Float64("confidence", rewrite.Confidence))
	default:
		result = normalizeWhitespace(rewrite.Canonical)
	}

	if c.cache != nil {
		c.cache.Set(key, result, c.ttl)
	}
	return result
}

func canonicalCacheKey(normalizedQuery, uiLanguage, regionCode string) string {
	sum := md5.Sum([]byte(normalizedQuery))
	return "canonical:" + hex.EncodeToString(sum[:]) + ":" + uiLanguage + ":" + regionCode
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
