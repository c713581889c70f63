package gate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
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

func TestClassifyFoodSearch(t *testing.T) {
	client := &fakeLLM{response: `{"isFoodSearch":true,"reason":"asks for italian restaurants","foodSignal":"YES"}`}
	s := NewService(client, time.Second, nil)

	result := s.Classify(context.Background(), "italian restaurants in Tel Aviv")

	assert.True(t, result.IsFoodSearch)
	assert.Equal(t, SignalYes, result.FoodSignal)
}

func TestClassifyNoOverridesIsFoodSearch(t *testing.T) {
	client := &fakeLLM{response: `{"isFoodSearch":true,"reason":"weather question","foodSignal":"NO"}`}
	s := NewService(client, time.Second, nil)

	result := s.Classify(context.Background(), "will it rain tomorrow")

	assert.False(t, result.IsFoodSearch)
	assert.Equal(t, SignalNo, result.FoodSignal)
}

func TestClassifyFailsOpenToMaybe(t *testing.T) {
	client := &fakeLLM{err: errors.New("deadline exceeded")}
	s := NewService(client, time.Second, nil)

	result := s.Classify(context.Background(), "anything")

	assert.True(t, result.IsFoodSearch)
	assert.Equal(t, SignalMaybe, result.FoodSignal)
	// One retry, then fallback.
	assert.Equal(t, 2, client.calls)
}

func TestClassifyUnknownSignalBecomesMaybe(t *testing.T) {
	client := &fakeLLM{response: `{"isFoodSearch":true,"reason":"?","foodSignal":"PERHAPS"}`}
	s := NewService(client, time.Second, nil)

	result := s.Classify(context.Background(), "food?")

	assert.Equal(t, SignalMaybe, result.FoodSignal)
}
