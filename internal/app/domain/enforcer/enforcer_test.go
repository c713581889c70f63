package enforcer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

type fakeLLM struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, stage, prompt string, timeout time.Duration, out interface{}) error {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return f.errs[i]
	}
	if i >= len(f.responses) {
		return errors.New("no canned response")
	}
	return json.Unmarshal([]byte(f.responses[i]), out)
}

func (f *fakeLLM) GenerateText(ctx context.Context, stage, prompt string, timeout time.Duration) (string, error) {
	return "", errors.New("not used")
}

func pool(ids ...string) []models.Place {
	out := make([]models.Place, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Place{PlaceID: id, Name: "place " + id, Types: []string{"restaurant"}})
	}
	return out
}

func strictPlan() *models.TextPlan {
	return &models.TextPlan{
		RequiredTerms: []string{"italian"},
		Strictness:    models.StrictnessStrict,
		CuisineKey:    "italian",
	}
}

func TestEnforceNothingToEnforce(t *testing.T) {
	s := NewService(&fakeLLM{}, time.Second, nil)
	places := pool("a", "b")

	got := s.Enforce(context.Background(), "food", &models.TextPlan{}, places)

	assert.Equal(t, places, got.Places)
	assert.False(t, got.Failed)
}

func TestEnforceKeepsJudgedSubsetInOrder(t *testing.T) {
	client := &fakeLLM{responses: []string{`{"keptPlaceIds":["c","a","e","b","f"]}`}}
	s := NewService(client, time.Second, nil)

	got := s.Enforce(context.Background(), "italian", strictPlan(), pool("a", "b", "c", "d", "e", "f"))

	require.Len(t, got.Places, 5)
	assert.Equal(t, "c", got.Places[0].PlaceID)
	assert.Equal(t, "a", got.Places[1].PlaceID)
	assert.False(t, got.RelaxApplied)
}

func TestEnforceDropsHallucinatedAndDuplicateIDs(t *testing.T) {
	client := &fakeLLM{responses: []string{`{"keptPlaceIds":["a","ghost","a","b","c","d","e"]}`}}
	s := NewService(client, time.Second, nil)

	got := s.Enforce(context.Background(), "italian", strictPlan(), pool("a", "b", "c", "d", "e"))

	ids := make([]string, 0, len(got.Places))
	for _, p := range got.Places {
		ids = append(ids, p.PlaceID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
}

func TestEnforceStrictAllowsThinResult(t *testing.T) {
	client := &fakeLLM{responses: []string{`{"keptPlaceIds":["a"]}`}}
	s := NewService(client, time.Second, nil)

	got := s.Enforce(context.Background(), "italian fine dining", strictPlan(), pool("a", "b", "c", "d", "e", "f"))

	assert.Len(t, got.Places, 1)
	assert.False(t, got.RelaxApplied)
	assert.Equal(t, 1, client.calls)
}

func TestEnforceRelaxFallbackPreferred(t *testing.T) {
	client := &fakeLLM{responses: []string{
		`{"keptPlaceIds":["a","b"]}`,
		`{"keptPlaceIds":["a","b","c","d","e"]}`,
	}}
	s := NewService(client, time.Second, nil)
	plan := &models.TextPlan{
		RequiredTerms:  []string{"neapolitan pizza"},
		PreferredTerms: []string{"pizza"},
		Strictness:     models.StrictnessRelaxIfEmpty,
	}

	got := s.Enforce(context.Background(), "neapolitan pizza", plan, pool("a", "b", "c", "d", "e", "f"))

	assert.Len(t, got.Places, 5)
	assert.True(t, got.RelaxApplied)
	assert.Equal(t, StrategyFallbackPreferred, got.RelaxStrategy)
	assert.Equal(t, 2, client.calls)
}

func TestEnforceRelaxDropsRequiredLast(t *testing.T) {
	client := &fakeLLM{responses: []string{
		`{"keptPlaceIds":["a"]}`,
		`{"keptPlaceIds":["a","b"]}`,
	}}
	s := NewService(client, time.Second, nil)
	plan := &models.TextPlan{
		RequiredTerms:  []string{"georgian"},
		PreferredTerms: []string{"caucasian"},
		Strictness:     models.StrictnessRelaxIfEmpty,
	}
	places := pool("a", "b", "c", "d", "e", "f")

	got := s.Enforce(context.Background(), "georgian food", plan, places)

	assert.Equal(t, places, got.Places)
	assert.True(t, got.RelaxApplied)
	assert.Equal(t, StrategyDropRequiredOnce, got.RelaxStrategy)
}

func TestEnforceNoPreferredTermsSkipsStraightToDrop(t *testing.T) {
	client := &fakeLLM{responses: []string{`{"keptPlaceIds":[]}`}}
	s := NewService(client, time.Second, nil)
	plan := &models.TextPlan{
		RequiredTerms: []string{"georgian"},
		Strictness:    models.StrictnessRelaxIfEmpty,
	}
	places := pool("a", "b", "c", "d", "e", "f")

	got := s.Enforce(context.Background(), "georgian food", plan, places)

	assert.Equal(t, places, got.Places)
	assert.Equal(t, StrategyDropRequiredOnce, got.RelaxStrategy)
	assert.Equal(t, 1, client.calls)
}

func TestEnforceLLMErrorDegradesToPassThrough(t *testing.T) {
	client := &fakeLLM{errs: []error{errors.New("timeout")}}
	s := NewService(client, time.Second, nil)
	places := pool("a", "b", "c")

	got := s.Enforce(context.Background(), "italian", strictPlan(), places)

	assert.Equal(t, places, got.Places)
	assert.True(t, got.Failed)
	assert.False(t, got.RelaxApplied)
}

func TestEnforceCuisineKeyAloneTriggersEnforcement(t *testing.T) {
	client := &fakeLLM{responses: []string{`{"keptPlaceIds":["a","b","c","d","e"]}`}}
	s := NewService(client, time.Second, nil)
	plan := &models.TextPlan{CuisineKey: "sushi", Strictness: models.StrictnessRelaxIfEmpty}

	got := s.Enforce(context.Background(), "sushi", plan, pool("a", "b", "c", "d", "e", "f"))

	assert.Len(t, got.Places, 5)
	assert.Equal(t, 1, client.calls)
}
