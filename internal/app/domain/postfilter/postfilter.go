// Package postfilter applies the soft filters locally to a candidate pool
// and relaxes them step by step when they choke the result set. Places with
// unknown values for a constrained field are kept; a filter only drops what
// it can positively reject.
package postfilter

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/domain/filters"
	"github.com/FACorreiaa/loci-search/internal/app/models"
)

const (
	// minResults is the floor below which relaxation starts.
	minResults = 5
	// maxRelaxSteps bounds how many constraints may be loosened.
	maxRelaxSteps = 2
)

// RelaxStep records one loosened constraint for the order explanation.
type RelaxStep struct {
	Step  int    `json:"step"`
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Outcome is the filtered pool plus the relaxation trail.
type Outcome struct {
	Places     []models.Place
	RelaxSteps []RelaxStep
}

type Service struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger, now: time.Now}
}

// Apply filters the pool, then relaxes constraints in a fixed order (open
// state first, dietary next, rating last) until enough places survive or the
// step budget runs out.
func (s *Service) Apply(places []models.Place, f models.SoftFilters) Outcome {
	filtered := s.filter(places, f)
	if len(filtered) >= minResults {
		return Outcome{Places: filtered}
	}

	var steps []RelaxStep
	for _, relax := range []func(*models.SoftFilters) *RelaxStep{relaxOpen, relaxDietary, relaxRating} {
		if len(steps) >= maxRelaxSteps || len(filtered) >= minResults {
			break
		}
		step := relax(&f)
		if step == nil {
			continue
		}
		step.Step = len(steps) + 1
		steps = append(steps, *step)
		filtered = s.filter(places, f)

		s.logger.Info("soft_filter_relaxed",
			zap.Int("step", step.Step),
			zap.String("field", step.Field),
			zap.String("from", step.From),
			zap.String("to", step.To),
			zap.Int("kept", len(filtered)),
		)
	}

	return Outcome{Places: filtered, RelaxSteps: steps}
}

// Count reports how many places pass the filters without relaxation; the
// requery decision uses it.
func (s *Service) Count(places []models.Place, f models.SoftFilters) int {
	return len(s.filter(places, f))
}

func (s *Service) filter(places []models.Place, f models.SoftFilters) []models.Place {
	dietaryTags := dietaryTypeTags(f)
	// Dietary constraints narrow only when the pool carries positive
	// signals; provider data rarely states a diet, and dropping everything
	// on absence of evidence would empty most searches.
	dietaryActive := len(dietaryTags) > 0 && anyMatchesDietary(places, dietaryTags)

	kept := make([]models.Place, 0, len(places))
	for _, p := range places {
		if !s.passesOpen(p, f) {
			continue
		}
		if !passesPrice(p, f) {
			continue
		}
		if !passesRating(p, f) {
			continue
		}
		if !passesReviews(p, f) {
			continue
		}
		if dietaryActive && !matchesDietary(p, dietaryTags) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func (s *Service) passesOpen(p models.Place, f models.SoftFilters) bool {
	switch {
	case f.OpenState != nil && *f.OpenState == models.OpenNow:
		open, known := p.OpeningHours.IsOpenNow()
		return !known || open
	case f.OpenAt != nil:
		open, known := p.OpeningHours.IsOpenAt(*f.OpenAt)
		return !known || open
	case f.OpenBetween != nil:
		return passesOpenBetween(p, *f.OpenBetween, s.now())
	}
	return true
}

// passesOpenBetween checks today's schedule for any overlap with the window.
func passesOpenBetween(p models.Place, w models.TimeWindow, now time.Time) bool {
	if p.OpeningHours == nil || len(p.OpeningHours.Periods) == 0 {
		return true
	}
	day := int(now.Weekday())
	for _, span := range p.OpeningHours.Periods {
		if span.Weekday != day {
			continue
		}
		if span.OpenMin < w.EndMin && span.CloseMin > w.StartMin {
			return true
		}
	}
	return false
}

func passesPrice(p models.Place, f models.SoftFilters) bool {
	if f.PriceIntent == nil || p.PriceLevel == nil {
		return true
	}
	return filters.PriceLevelAllowed(*f.PriceIntent, *p.PriceLevel)
}

func passesRating(p models.Place, f models.SoftFilters) bool {
	if f.MinRating == nil || p.Rating == nil {
		return true
	}
	threshold, ok := filters.RatingThreshold(*f.MinRating)
	return !ok || *p.Rating >= threshold
}

func passesReviews(p models.Place, f models.SoftFilters) bool {
	if f.MinReviewCount == nil || p.UserRatingsTotal == nil {
		return true
	}
	threshold, ok := filters.ReviewThreshold(*f.MinReviewCount)
	return !ok || *p.UserRatingsTotal >= threshold
}

// dietaryTypeTags maps the requested diets to the provider type substrings
// that positively signal them.
func dietaryTypeTags(f models.SoftFilters) []string {
	var tags []string
	if f.Vegan {
		tags = append(tags, "vegan")
	}
	if f.Vegetarian {
		tags = append(tags, "vegetarian")
	}
	if f.GlutenFree {
		tags = append(tags, "gluten")
	}
	if f.Kosher {
		tags = append(tags, "kosher")
	}
	if f.Halal {
		tags = append(tags, "halal")
	}
	return tags
}

func anyMatchesDietary(places []models.Place, tags []string) bool {
	for _, p := range places {
		if matchesDietary(p, tags) {
			return true
		}
	}
	return false
}

func matchesDietary(p models.Place, tags []string) bool {
	haystack := strings.ToLower(p.Name)
	for _, t := range p.Types {
		haystack += " " + strings.ToLower(t)
	}
	for _, tag := range tags {
		if strings.Contains(haystack, tag) {
			return true
		}
	}
	return false
}

func relaxOpen(f *models.SoftFilters) *RelaxStep {
	switch {
	case f.OpenState != nil:
		from := string(*f.OpenState)
		f.OpenState = nil
		return &RelaxStep{Field: "openState", From: from, To: ""}
	case f.OpenAt != nil:
		from := f.OpenAt.UTC().Format(time.RFC3339)
		f.OpenAt = nil
		return &RelaxStep{Field: "openAt", From: from, To: ""}
	case f.OpenBetween != nil:
		f.OpenBetween = nil
		return &RelaxStep{Field: "openBetween", From: "window", To: ""}
	}
	return nil
}

func relaxDietary(f *models.SoftFilters) *RelaxStep {
	if !f.Vegan && !f.Vegetarian && !f.GlutenFree && !f.Kosher && !f.Halal {
		return nil
	}
	from := strings.Join(dietaryTypeTags(*f), ",")
	f.Vegan, f.Vegetarian, f.GlutenFree, f.Kosher, f.Halal = false, false, false, false, false
	return &RelaxStep{Field: "dietary", From: from, To: ""}
}

// relaxRating clears the bucket outright, like the other relax steps; the
// ladder never lowers it one notch.
func relaxRating(f *models.SoftFilters) *RelaxStep {
	if f.MinRating == nil {
		return nil
	}
	from := string(*f.MinRating)
	f.MinRating = nil
	return &RelaxStep{Field: "minRatingBucket", From: from, To: ""}
}
