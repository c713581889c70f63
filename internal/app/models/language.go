package models

// Language codes used across the pipeline. uiLanguage is restricted to the
// client display languages; the others cover the full supported set.
const (
	LangHebrew  = "he"
	LangEnglish = "en"
	LangSpanish = "es"
	LangRussian = "ru"
	LangArabic  = "ar"
	LangFrench  = "fr"
)

// SupportedQueryLanguages is the closed set the intent stage may emit.
var SupportedQueryLanguages = []string{LangHebrew, LangEnglish, LangSpanish, LangRussian, LangArabic, LangFrench}

// Provenance tags for how each language field was decided.
const (
	ProvenanceLLMConfident        = "llm_confident"
	ProvenanceUILowConfidence     = "uiLanguage_low_confidence"
	ProvenanceQueryPolicy         = "query_language_policy"
	ProvenanceFallbackUnsupported = "query_language_fallback_unsupported"
)

// LanguageContext carries the four distinct languages of a request.
// SearchLanguage is a function of QueryLanguage and the provider allow-list
// only; it must never be derived from UILanguage or AssistantLanguage.
type LanguageContext struct {
	UILanguage          string  `json:"uiLanguage"`
	QueryLanguage       string  `json:"queryLanguage"`
	QueryConfidence     float64 `json:"queryConfidence"`
	AssistantLanguage   string  `json:"assistantLanguage"`
	SearchLanguage      string  `json:"searchLanguage"`
	AssistantProvenance string  `json:"assistantProvenance"`
	SearchProvenance    string  `json:"searchProvenance"`
}
