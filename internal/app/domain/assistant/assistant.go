// Package assistant produces the short conversational message that rides
// alongside search results. The message is decorative: generation runs after
// the result is already persisted, failures degrade to fixed templates, and
// nothing here can fail a job.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/domain/llm"
	"github.com/FACorreiaa/loci-search/internal/app/models"
)

// MessageContext selects the tone, the sentence budget and whether the
// message blocks a search.
type MessageContext string

const (
	ContextGateFail         MessageContext = "GATE_FAIL"
	ContextClarify          MessageContext = "CLARIFY"
	ContextSummary          MessageContext = "SUMMARY"
	ContextSearchFailed     MessageContext = "SEARCH_FAILED"
	ContextGenericNarration MessageContext = "GENERIC_QUERY_NARRATION"
)

// blocksSearch is fixed per context; the LLM has no say in it.
var blocksSearch = map[MessageContext]bool{
	ContextGateFail: true,
	ContextClarify:  true,
}

// sentence budgets per context.
var maxSentences = map[MessageContext]int{
	ContextGateFail:         2,
	ContextClarify:          2,
	ContextSummary:          3,
	ContextSearchFailed:     2,
	ContextGenericNarration: 2,
}

// Request is everything the assistant may mention.
type Request struct {
	Context     MessageContext
	Query       string
	Language    string // the resolved assistant language
	GateReason  string
	ResultCount int
	TopNames    []string
}

// Message is the validated output.
type Message struct {
	Text         string         `json:"text"`
	Language     string         `json:"language"`
	Context      MessageContext `json:"context"`
	BlocksSearch bool           `json:"blocksSearch"`
	Fallback     bool           `json:"fallback,omitempty"`
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

const promptFmt = `Write a short message to a restaurant-search user.
Context: %s. %s
The user's query: %q
Write in language %q only. At most %d sentences.%s
Respond with JSON only: {"text":"..."}`

var contextInstructions = map[MessageContext]string{
	ContextGateFail:         "The query is not a food or restaurant search; gently say so and invite a food-related query.",
	ContextClarify:          "The query is too ambiguous to search; ask one clarifying question.",
	ContextSummary:          "Summarise the search outcome in a friendly tone.",
	ContextSearchFailed:     "The search failed on our side; apologise briefly and suggest trying again.",
	ContextGenericNarration: "The user asked generically what to eat; narrate that nearby options are being shown.",
}

type messageWire struct {
	Text string `json:"text"`
}

// Generate returns a validated message, falling back to the fixed template
// on any LLM failure or schema violation. It never returns an error.
func (s *Service) Generate(ctx context.Context, req Request) Message {
	ctx, span := otel.Tracer("AssistantService").Start(ctx, "Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("assistant.context", string(req.Context)),
		attribute.String("assistant.language", req.Language),
	)

	msg := Message{
		Language:     req.Language,
		Context:      req.Context,
		BlocksSearch: blocksSearch[req.Context],
	}

	var wire messageWire
	err := s.llm.GenerateJSON(ctx, "assistant", s.buildPrompt(req), s.timeout, &wire)
	if err == nil {
		if text, ok := s.validate(req, wire.Text); ok {
			msg.Text = text
			return msg
		}
		s.logger.Info("assistant_schema_rejected", zap.String("context", string(req.Context)))
	} else {
		s.logger.Debug("assistant_generation_failed", zap.Error(err))
	}

	span.SetAttributes(attribute.Bool("assistant.fallback", true))
	msg.Text = fallbackText(req)
	msg.Fallback = true
	return msg
}

func (s *Service) buildPrompt(req Request) string {
	var extra strings.Builder
	if req.Context == ContextSummary {
		fmt.Fprintf(&extra, "\nResults found: %d.", req.ResultCount)
		if len(req.TopNames) > 0 {
			fmt.Fprintf(&extra, " Top places: %s.", strings.Join(req.TopNames, ", "))
		}
	}
	if req.Context == ContextGateFail && req.GateReason != "" {
		fmt.Fprintf(&extra, "\nWhy it was rejected: %s.", req.GateReason)
	}
	return fmt.Sprintf(promptFmt,
		req.Context, contextInstructions[req.Context],
		req.Query, req.Language, maxSentences[req.Context], extra.String())
}

// validate enforces the output schema: non-empty, within the sentence
// budget, the right script for non-Latin languages, and the question rule
// (CLARIFY asks, the others do not).
func (s *Service) validate(req Request, text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	if countSentences(text) > maxSentences[req.Context] {
		return "", false
	}
	if !scriptMatches(req.Language, text) {
		return "", false
	}
	hasQuestion := strings.ContainsAny(text, "?؟")
	if req.Context == ContextClarify && !hasQuestion {
		return "", false
	}
	if req.Context != ContextClarify && hasQuestion {
		return "", false
	}
	return text, true
}

func countSentences(text string) int {
	count := 0
	inSentence := false
	for _, r := range text {
		switch r {
		case '.', '!', '?', '؟', '…':
			if inSentence {
				count++
				inSentence = false
			}
		default:
			if !strings.ContainsRune(" \t\n", r) {
				inSentence = true
			}
		}
	}
	if inSentence {
		count++
	}
	return count
}

// scriptMatches verifies the text carries the expected script for languages
// with a distinctive one. Latin-script languages pass unchecked.
func scriptMatches(language, text string) bool {
	var lo, hi rune
	switch language {
	case models.LangHebrew:
		lo, hi = 0x0590, 0x05FF
	case models.LangArabic:
		lo, hi = 0x0600, 0x06FF
	case models.LangRussian:
		lo, hi = 0x0400, 0x04FF
	default:
		return true
	}
	for _, r := range text {
		if r >= lo && r <= hi {
			return true
		}
	}
	return false
}
