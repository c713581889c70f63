// Package enforcer is the semantic cuisine filter: an LLM judges which
// fetched places actually satisfy the query's required terms, since provider
// type tags are too coarse ("italian_restaurant" on a pizza chain) and
// keyword matching fails across languages.
package enforcer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/domain/llm"
	"github.com/FACorreiaa/loci-search/internal/app/models"
)

// Relax strategies, in the order they are tried.
const (
	StrategyFallbackPreferred = "fallback_preferred"
	StrategyDropRequiredOnce  = "drop_required_once"
)

// minKept is the pool size below which relaxation kicks in.
const minKept = 5

// Outcome is the enforcement result. Failed means the stage degraded to a
// pass-through; the response meta surfaces it.
type Outcome struct {
	Places        []models.Place
	RelaxApplied  bool
	RelaxStrategy string
	Failed        bool
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

// Enforce filters places against the plan's required terms. Without required
// terms or a cuisine key there is nothing to enforce. Errors never fail the
// job; the full pool comes back with Failed set.
func (s *Service) Enforce(ctx context.Context, query string, plan *models.TextPlan, places []models.Place) Outcome {
	ctx, span := otel.Tracer("EnforcerService").Start(ctx, "Enforce")
	defer span.End()

	if plan == nil || (len(plan.RequiredTerms) == 0 && plan.CuisineKey == "") || len(places) == 0 {
		return Outcome{Places: places}
	}

	required := plan.RequiredTerms
	if len(required) == 0 {
		required = []string{plan.CuisineKey}
	}

	kept, err := s.judge(ctx, query, required, places)
	if err != nil {
		s.logger.Warn("cuisine_enforcement_failed", zap.Error(err))
		span.SetAttributes(attribute.Bool("enforcer.failed", true))
		return Outcome{Places: places, Failed: true}
	}

	if len(kept) >= minKept || plan.Strictness == models.StrictnessStrict {
		span.SetAttributes(attribute.Int("enforcer.kept", len(kept)))
		return Outcome{Places: kept}
	}

	// Too thin: widen to the preferred terms first.
	if len(plan.PreferredTerms) > 0 {
		widened, err := s.judge(ctx, query, plan.PreferredTerms, places)
		if err == nil && len(widened) >= minKept {
			s.logger.Info("cuisine_enforcement_relaxed",
				zap.String("strategy", StrategyFallbackPreferred),
				zap.Int("kept", len(widened)),
			)
			return Outcome{Places: widened, RelaxApplied: true, RelaxStrategy: StrategyFallbackPreferred}
		}
		if err != nil {
			s.logger.Warn("cuisine_enforcement_relax_failed", zap.Error(err))
		}
	}

	// Last resort: drop the requirement once and return the full pool.
	s.logger.Info("cuisine_enforcement_relaxed",
		zap.String("strategy", StrategyDropRequiredOnce),
		zap.Int("pool", len(places)),
	)
	return Outcome{Places: places, RelaxApplied: true, RelaxStrategy: StrategyDropRequiredOnce}
}

type judgeWire struct {
	KeptPlaceIDs []string `json:"keptPlaceIds"`
}

const judgePromptFmt = `A user searched: %q
Required terms a place must semantically satisfy: %s

For each candidate decide whether it genuinely matches the required terms.
Judge by name and types; a place tagged "italian_restaurant" that is clearly a pizza chain does not satisfy "italian fine dining".
Respond with JSON only, keeping the input order: {"keptPlaceIds":["..."]}

Candidates:
%s`

func (s *Service) judge(ctx context.Context, query string, terms []string, places []models.Place) ([]models.Place, error) {
	var catalog strings.Builder
	index := make(map[string]models.Place, len(places))
	for _, p := range places {
		index[p.PlaceID] = p
		fmt.Fprintf(&catalog, "- id=%s name=%q types=%s\n", p.PlaceID, p.Name, strings.Join(p.Types, ","))
	}

	termsJSON, err := json.Marshal(terms)
	if err != nil {
		return nil, err
	}

	var wire judgeWire
	prompt := fmt.Sprintf(judgePromptFmt, query, termsJSON, catalog.String())
	if err := s.llm.GenerateJSON(ctx, "cuisine_enforcer", prompt, s.timeout, &wire); err != nil {
		return nil, err
	}

	kept := make([]models.Place, 0, len(wire.KeptPlaceIDs))
	seen := make(map[string]bool, len(wire.KeptPlaceIDs))
	for _, id := range wire.KeptPlaceIDs {
		p, ok := index[id]
		if !ok || seen[id] {
			// Hallucinated or duplicated IDs are dropped silently.
			continue
		}
		seen[id] = true
		kept = append(kept, p)
	}
	return kept, nil
}
