package filters

import (
	"strings"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// filterKeywords is the language-tagged keyword set for the deterministic
// skip rule: a generic query containing none of these needs no BaseFilters
// LLM call. The set covers open/price/rating/review/distance concepts in
// the supported query languages.
var filterKeywords = []string{
	// open / hours
	"open", "open now", "hours", "tonight", "breakfast", "lunch", "dinner",
	"פתוח", "פתוחה", "פתוחות", "עכשיו", "ארוחת",
	"abierto", "abierta", "ahora",
	"открыт", "открыто", "сейчас",
	"مفتوح", "الآن",
	"ouvert", "ouverte", "maintenant",
	// price
	"cheap", "expensive", "budget", "fancy", "affordable", "$$",
	"זול", "זולה", "יקר", "יקרה", "משתלם",
	"barato", "caro", "económico",
	"дешев", "дорог",
	"رخيص", "غالي",
	"pas cher", "cher", "abordable",
	// rating / reviews
	"best", "top rated", "rating", "reviews", "recommended",
	"הכי טוב", "מומלץ", "מומלצת", "דירוג", "ביקורות",
	"mejor", "recomendado", "reseñas",
	"лучш", "отзыв", "рекоменд",
	"أفضل", "تقييم",
	"meilleur", "avis", "recommandé",
	// distance
	"near", "nearby", "close", "walking distance", "within",
	"ליד", "קרוב", "קרובה", "בסביבה", "מרחק הליכה",
	"cerca", "cercano",
	"рядом", "недалеко", "близко",
	"قريب", "بالقرب",
	"près", "proche", "à proximité",
}

// KeywordScanner detects filter vocabulary across the supported languages
// with one multi-pattern automaton pass.
type KeywordScanner struct {
	ac ahocorasick.AhoCorasick
}

func NewKeywordScanner() *KeywordScanner {
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	return &KeywordScanner{ac: builder.Build(filterKeywords)}
}

// HasFilterKeywords reports whether the query mentions any open/price/
// rating/review/distance concept.
func (s *KeywordScanner) HasFilterKeywords(query string) bool {
	matches := s.ac.FindAll(strings.ToLower(query))
	return len(matches) > 0
}
