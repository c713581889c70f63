// Package gate decides whether a query is worth a full pipeline run.
package gate

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/domain/llm"
	"github.com/FACorreiaa/loci-search/internal/pkg/retry"
)

// Food signals. MAYBE proceeds but can trigger the generic-query guard.
const (
	SignalYes   = "YES"
	SignalNo    = "NO"
	SignalMaybe = "MAYBE"
)

// Result is the gate's classification.
type Result struct {
	IsFoodSearch bool   `json:"isFoodSearch"`
	Reason       string `json:"reason"`
	FoodSignal   string `json:"foodSignal"`
}

type Service struct {
	llm     llm.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewService(client llm.Client, timeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{llm: client, timeout: timeout, logger: logger}
}

const gatePromptFmt = `You are a classifier for a restaurant search service.
Decide whether the user query below is a plausible request to find food, a restaurant, a cafe, or a place to eat.
Queries in any language are possible. Generic hunger expressions ("what should I eat") count as food searches.
Respond with JSON only: {"isFoodSearch": boolean, "reason": string, "foodSignal": "YES"|"NO"|"MAYBE"}

Query: %q`

// Classify runs the gate LLM call. Timeouts are retried exactly once; any
// final failure fails open to MAYBE so a flaky LLM never blocks a user.
func (s *Service) Classify(ctx context.Context, query string) Result {
	ctx, span := otel.Tracer("GateService").Start(ctx, "Classify")
	defer span.End()

	result, err := retry.Do(ctx, 2, retry.Always, func(ctx context.Context) (Result, error) {
		var out Result
		err := s.llm.GenerateJSON(ctx, "gate", fmt.Sprintf(gatePromptFmt, query), s.timeout, &out)
		return out, err
	})
	if err != nil {
		s.logger.Warn("gate_fallback_maybe", zap.Error(err))
		span.SetAttributes(attribute.Bool("gate.fallback", true))
		return Result{IsFoodSearch: true, Reason: "classifier unavailable", FoodSignal: SignalMaybe}
	}

	switch result.FoodSignal {
	case SignalYes, SignalNo, SignalMaybe:
	default:
		result.FoodSignal = SignalMaybe
	}
	if result.FoodSignal == SignalNo {
		result.IsFoodSearch = false
	}

	s.logger.Info("gate_classified",
		zap.Bool("is_food_search", result.IsFoodSearch),
		zap.String("food_signal", result.FoodSignal),
		zap.String("reason", result.Reason),
	)
	span.SetAttributes(attribute.String("gate.signal", result.FoodSignal))
	return result
}
