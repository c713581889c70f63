package intent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, stage, prompt string, timeout time.Duration, out interface{}) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.response), out)
}

func (f *fakeLLM) GenerateText(ctx context.Context, stage, prompt string, timeout time.Duration) (string, error) {
	f.calls++
	return f.response, f.err
}

func TestClassifyExplicitCity(t *testing.T) {
	client := &fakeLLM{response: `{"route":"TEXTSEARCH","reason":"explicit_city_mentioned","language":"he","languageConfidence":0.95,"regionCandidate":"IL","regionConfidence":0.9,"cityText":"תל אביב"}`}
	s := NewService(client, time.Second, nil)

	r := s.Classify(context.Background(), "מסעדות איטלקיות בתל אביב", true)

	assert.Equal(t, models.RouteTextSearch, r.Route)
	assert.Equal(t, models.ReasonExplicitCity, r.Reason)
	assert.Equal(t, "IL", r.RegionCandidate)
	assert.Equal(t, "תל אביב", r.CityText)
}

func TestClassifyFallbackOnError(t *testing.T) {
	client := &fakeLLM{err: errors.New("timeout")}
	s := NewService(client, time.Second, nil)

	r := s.Classify(context.Background(), "pizza", true)

	assert.Equal(t, models.RouteTextSearch, r.Route)
	assert.Equal(t, models.ReasonDefault, r.Reason)
	assert.Equal(t, 0.5, r.LanguageConfidence)
	assert.Equal(t, 2, client.calls, "intent retries exactly once")
}

func TestClassifyRegionFixup(t *testing.T) {
	client := &fakeLLM{response: `{"route":"TEXTSEARCH","reason":"default","language":"he","languageConfidence":0.9,"regionCandidate":"IS","regionConfidence":0.8}`}
	s := NewService(client, time.Second, nil)

	r := s.Classify(context.Background(), "מסעדות בישראל", false)

	assert.Equal(t, "IL", r.RegionCandidate)
}

func TestClassifyInvalidRegionDropped(t *testing.T) {
	client := &fakeLLM{response: `{"route":"TEXTSEARCH","reason":"default","language":"en","languageConfidence":0.9,"regionCandidate":"XX","regionConfidence":0.8}`}
	s := NewService(client, time.Second, nil)

	r := s.Classify(context.Background(), "restaurants", false)

	assert.Empty(t, r.RegionCandidate)
}

func TestClassifyNearbyWithoutLocationDemoted(t *testing.T) {
	client := &fakeLLM{response: `{"route":"NEARBY","reason":"nearby_intent","language":"en","languageConfidence":0.9}`}
	s := NewService(client, time.Second, nil)

	r := s.Classify(context.Background(), "restaurants near me", false)

	assert.Equal(t, models.RouteTextSearch, r.Route)
	assert.Equal(t, models.ReasonDefault, r.Reason)
}

func TestClassifyUnknownEnumsNormalised(t *testing.T) {
	client := &fakeLLM{response: `{"route":"TELEPORT","reason":"vibes","language":"en","languageConfidence":1.5}`}
	s := NewService(client, time.Second, nil)

	r := s.Classify(context.Background(), "food", true)

	assert.Equal(t, models.RouteTextSearch, r.Route)
	assert.Equal(t, models.ReasonDefault, r.Reason)
	assert.Equal(t, 1.0, r.LanguageConfidence)
}

func TestValidateRegion(t *testing.T) {
	assert.Equal(t, "IL", ValidateRegion("il"))
	assert.Equal(t, "IL", ValidateRegion("IS"))
	assert.Equal(t, "GB", ValidateRegion("UK"))
	assert.Equal(t, "FR", ValidateRegion(" fr "))
	assert.Empty(t, ValidateRegion("ZZ"))
	assert.Empty(t, ValidateRegion(""))
}
