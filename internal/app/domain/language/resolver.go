// Package language computes the per-request language context. Four languages
// live here (ui, query, assistant, search) and only searchLanguage may reach
// provider cache keys.
package language

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

const (
	confidenceThreshold = 0.7
	fallbackLanguage    = models.LangEnglish
)

// Resolver is pure; the logger only emits the resolution record.
type Resolver struct {
	logger *zap.Logger
}

func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// Resolve computes the LanguageContext from the client preference and the
// intent stage's language classification.
func (r *Resolver) Resolve(uiLanguage, queryText string, intentLanguage string, intentConfidence float64) models.LanguageContext {
	ui := normalizeUILanguage(uiLanguage)
	query := normalizeTag(intentLanguage)

	lc := models.LanguageContext{
		UILanguage:      ui,
		QueryLanguage:   query,
		QueryConfidence: intentConfidence,
	}

	if query != "" && intentConfidence >= confidenceThreshold {
		lc.AssistantLanguage = query
		lc.AssistantProvenance = models.ProvenanceLLMConfident
	} else {
		lc.AssistantLanguage = ui
		lc.AssistantProvenance = models.ProvenanceUILowConfidence
	}

	// searchLanguage depends on queryLanguage and the supported set only.
	if query != "" && isSupported(query) {
		lc.SearchLanguage = query
		lc.SearchProvenance = models.ProvenanceQueryPolicy
	} else {
		lc.SearchLanguage = fallbackLanguage
		lc.SearchProvenance = models.ProvenanceFallbackUnsupported
	}

	r.logger.Info("language_context_resolved",
		zap.String("ui_language", lc.UILanguage),
		zap.String("query_language", lc.QueryLanguage),
		zap.Float64("query_confidence", lc.QueryConfidence),
		zap.String("assistant_language", lc.AssistantLanguage),
		zap.String("assistant_provenance", lc.AssistantProvenance),
		zap.String("search_language", lc.SearchLanguage),
		zap.String("search_provenance", lc.SearchProvenance),
		zap.Int("query_length", len(queryText)),
	)

	return lc
}

// Validate rejects a context whose searchLanguage was derived from the ui or
// assistant language.
func Validate(lc models.LanguageContext) error {
	if strings.Contains(lc.SearchProvenance, "ui") || strings.Contains(lc.SearchProvenance, "assistant") {
		return fmt.Errorf("%w: searchLanguage provenance %q is not query-derived", models.ErrValidation, lc.SearchProvenance)
	}
	if lc.SearchLanguage != fallbackLanguage && !isSupported(lc.SearchLanguage) {
		return fmt.Errorf("%w: searchLanguage %q is not provider-supported", models.ErrValidation, lc.SearchLanguage)
	}
	return nil
}

func normalizeUILanguage(ui string) string {
	switch normalizeTag(ui) {
	case models.LangHebrew:
		return models.LangHebrew
	default:
		return models.LangEnglish
	}
}

// normalizeTag reduces a BCP-47-ish input ("he-IL", "EN", "iw") to the base
// two-letter code, empty string when unparseable.
func normalizeTag(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	code := base.String()
	// The matcher canonicalises legacy Hebrew "iw" to "he" already, but be
	// explicit for callers that bypass Parse.
	if code == "iw" {
		code = models.LangHebrew
	}
	return code
}

func isSupported(code string) bool {
	for _, l := range models.SupportedQueryLanguages {
		if l == code {
			return true
		}
	}
	return false
}
