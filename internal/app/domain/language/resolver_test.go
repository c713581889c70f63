package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

func TestResolveConfidentQueryLanguage(t *testing.T) {
	r := NewResolver(nil)

	lc := r.Resolve("en", "מסעדות איטלקיות בתל אביב", "he", 0.95)

	assert.Equal(t, "en", lc.UILanguage)
	assert.Equal(t, "he", lc.QueryLanguage)
	assert.Equal(t, "he", lc.AssistantLanguage)
	assert.Equal(t, models.ProvenanceLLMConfident, lc.AssistantProvenance)
	assert.Equal(t, "he", lc.SearchLanguage)
	assert.Equal(t, models.ProvenanceQueryPolicy, lc.SearchProvenance)
	require.NoError(t, Validate(lc))
}

func TestResolveLowConfidenceFallsBackToUI(t *testing.T) {
	r := NewResolver(nil)

	lc := r.Resolve("he", "pizza", "en", 0.4)

	assert.Equal(t, "he", lc.AssistantLanguage)
	assert.Equal(t, models.ProvenanceUILowConfidence, lc.AssistantProvenance)
	// searchLanguage still follows the query language, not the UI fallback.
	assert.Equal(t, "en", lc.SearchLanguage)
	assert.Equal(t, models.ProvenanceQueryPolicy, lc.SearchProvenance)
}

func TestResolveUnsupportedQueryLanguage(t *testing.T) {
	r := NewResolver(nil)

	lc := r.Resolve("en", "beste restaurants in Berlin", "de", 0.9)

	assert.Equal(t, "de", lc.QueryLanguage)
	assert.Equal(t, "en", lc.SearchLanguage)
	assert.Equal(t, models.ProvenanceFallbackUnsupported, lc.SearchProvenance)
	require.NoError(t, Validate(lc))
}

func TestResolveNormalisesTags(t *testing.T) {
	r := NewResolver(nil)

	tests := []struct {
		raw      string
		expected string
	}{
		{"he-IL", "he"},
		{"EN", "en"},
		{"iw", "he"},
		{"fr-FR", "fr"},
	}
	for _, tt := range tests {
		lc := r.Resolve("en", "q", tt.raw, 0.9)
		assert.Equal(t, tt.expected, lc.QueryLanguage, "raw tag %q", tt.raw)
	}
}

func TestResolveInvalidUILanguageDefaultsEnglish(t *testing.T) {
	r := NewResolver(nil)

	lc := r.Resolve("zz-!!", "what should I eat", "", 0)

	assert.Equal(t, "en", lc.UILanguage)
	assert.Equal(t, "en", lc.AssistantLanguage)
	assert.Equal(t, "en", lc.SearchLanguage)
}

// searchLanguage must be a function of queryLanguage only: mutating the UI
// language never changes it.
func TestSearchLanguageIndependentOfUILanguage(t *testing.T) {
	r := NewResolver(nil)

	for _, query := range []struct {
		lang string
		conf float64
	}{
		{"he", 0.9}, {"en", 0.9}, {"ru", 0.3}, {"de", 0.9}, {"", 0},
	} {
		withEN := r.Resolve("en", "q", query.lang, query.conf)
		withHE := r.Resolve("he", "q", query.lang, query.conf)
		assert.Equal(t, withEN.SearchLanguage, withHE.SearchLanguage,
			"query lang %q conf %v", query.lang, query.conf)
		assert.Equal(t, withEN.SearchProvenance, withHE.SearchProvenance)
	}
}

func TestValidateRejectsUIDerivedSearchLanguage(t *testing.T) {
	lc := models.LanguageContext{
		SearchLanguage:   "he",
		SearchProvenance: "uiLanguage_low_confidence",
	}
	assert.Error(t, Validate(lc))
}
