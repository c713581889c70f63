package mapper

import (
	"strings"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// cuisinePatterns maps a canonical language-independent cuisine key to its
// multilingual surface forms. The deterministic extractor is authoritative:
// when an LLM emits a conflicting key, the extractor's wins.
var cuisinePatterns = map[string][]string{
	"italian":  {"italian", "italiano", "italiana", "italien", "italienne", "איטלקי", "איטלקית", "итальян", "إيطالي"},
	"pizza":    {"pizza", "pizzeria", "פיצה", "пицц", "بيتزا"},
	"sushi":    {"sushi", "סושי", "суши", "سوشي"},
	"japanese": {"japanese", "japonés", "japonais", "יפני", "יפנית", "япон", "ياباني"},
	"chinese":  {"chinese", "chino", "chinois", "סיני", "סינית", "китай", "صيني"},
	"thai":     {"thai", "tailandés", "thaïlandais", "תאילנדי", "тайск", "تايلاندي"},
	"indian":   {"indian", "indio", "indien", "הודי", "הודית", "индий", "هندي"},
	"mexican":  {"mexican", "mexicano", "mexicain", "מקסיקני", "мексикан", "مكسيكي"},
	"french":   {"french", "francés", "français", "צרפתי", "צרפתית", "француз", "فرنسي"},
	"greek":    {"greek", "griego", "grec", "יווני", "יוונית", "греческ", "يوناني"},
	"georgian": {"georgian", "georgiano", "géorgien", "גיאורגי", "грузин", "جورجي"},
	"korean":   {"korean", "coreano", "coréen", "קוריאני", "корей", "كوري"},
	"seafood":  {"seafood", "fish restaurant", "mariscos", "fruits de mer", "דגים", "פירות ים", "морепродукт", "مأكولات بحرية"},
	"steak":    {"steakhouse", "steak house", "steak", "סטייק", "стейк", "ستيك"},
	"burger":   {"burger", "hamburger", "המבורגר", "בורגר", "бургер", "برغر"},
	"cafe":     {"cafe", "coffee", "café", "בית קפה", "קפה", "кофе", "кафе", "قهوة", "مقهى"},
	"bakery":   {"bakery", "panadería", "boulangerie", "מאפייה", "пекарн", "مخبز"},
	"hummus":   {"hummus", "חומוס", "хумус", "حمص"},
	"falafel":  {"falafel", "פלאפל", "фалафель", "فلافل"},
	"shawarma": {"shawarma", "שווארמה", "שוארמה", "шаурм", "شاورما"},
	"vegan":    {"vegan", "vegano", "végétalien", "טבעוני", "טבעונית", "веган", "نباتي"},
}

// includedTypeOverrides lists cuisine keys whose provider type is not the
// regular <key>_restaurant form.
var includedTypeOverrides = map[string][]string{
	"pizza":    {"pizza_restaurant", "restaurant"},
	"sushi":    {"sushi_restaurant", "japanese_restaurant", "restaurant"},
	"burger":   {"hamburger_restaurant", "restaurant"},
	"cafe":     {"cafe"},
	"bakery":   {"bakery"},
	"steak":    {"steak_house", "restaurant"},
	"hummus":   {"middle_eastern_restaurant", "restaurant"},
	"falafel":  {"middle_eastern_restaurant", "restaurant"},
	"shawarma": {"middle_eastern_restaurant", "restaurant"},
	"vegan":    {"vegan_restaurant", "restaurant"},
}

// CuisineExtractor pattern-matches queries against the multilingual cuisine
// table in one automaton pass.
type CuisineExtractor struct {
	ac   ahocorasick.AhoCorasick
	keys []string
}

func NewCuisineExtractor() *CuisineExtractor {
	var patterns []string
	var keys []string
	for key, forms := range cuisinePatterns {
		for _, form := range forms {
			patterns = append(patterns, form)
			keys = append(keys, key)
		}
	}
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	return &CuisineExtractor{ac: builder.Build(patterns), keys: keys}
}

// Extract returns the canonical cuisine key for the query, empty when none
// matches. The leftmost match wins so "pizza or sushi" yields "pizza".
func (e *CuisineExtractor) Extract(query string) string {
	matches := e.ac.FindAll(strings.ToLower(query))
	if len(matches) == 0 {
		return ""
	}
	return e.keys[matches[0].Pattern()]
}

// IncludedTypes derives the provider includedTypes list deterministically
// from cuisineKey or typeKey; never from the raw keyword.
func IncludedTypes(cuisineKey, typeKey string) []string {
	if cuisineKey != "" {
		if types, ok := includedTypeOverrides[cuisineKey]; ok {
			return types
		}
		return []string{cuisineKey + "_restaurant", "restaurant"}
	}
	if typeKey != "" {
		return []string{typeKey}
	}
	return []string{"restaurant"}
}
