// Package llm wraps the Gemini SDK behind a stage-oriented client: every
// pipeline stage calls through here with its own timeout, and JSON replies
// are scrubbed of markdown fences before decoding.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	generativeAI "github.com/FACorreiaa/go-genai-sdk/lib"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/FACorreiaa/loci-search/internal/app/observability/metrics"
)

// Client is the stage-facing LLM surface. Implementations must honour the
// timeout and return an error rather than a partial decode.
type Client interface {
	GenerateJSON(ctx context.Context, stage, prompt string, timeout time.Duration, out interface{}) error
	GenerateText(ctx context.Context, stage, prompt string, timeout time.Duration) (string, error)
}

type GenAIClient struct {
	ai      *generativeAI.LLMChatClient
	logger  *zap.Logger
	metrics *metrics.AppMetrics
}

func NewGenAIClient(ctx context.Context, apiKey string, logger *zap.Logger) (*GenAIClient, error) {
	ai, err := generativeAI.NewLLMChatClient(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return &GenAIClient{ai: ai, logger: logger, metrics: metrics.Get()}, nil
}

var jsonConfig = &genai.GenerateContentConfig{
	Temperature:      genai.Ptr(float32(0.2)),
	ResponseMIMEType: "application/json",
}

var textConfig = &genai.GenerateContentConfig{
	Temperature: genai.Ptr(float32(0.7)),
}

// GenerateJSON runs one LLM call with the stage budget and decodes the reply
// into out.
func (c *GenAIClient) GenerateJSON(ctx context.Context, stage, prompt string, timeout time.Duration, out interface{}) error {
	txt, err := c.generate(ctx, stage, prompt, timeout, jsonConfig)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(cleanJSONResponse(txt)), out); err != nil {
		c.logger.Warn("llm_json_parse_failed", zap.String("stage", stage), zap.Error(err))
		return fmt.Errorf("failed to parse %s response JSON: %w", stage, err)
	}
	return nil
}

func (c *GenAIClient) GenerateText(ctx context.Context, stage, prompt string, timeout time.Duration) (string, error) {
	return c.generate(ctx, stage, prompt, timeout, textConfig)
}

func (c *GenAIClient) generate(ctx context.Context, stage, prompt string, timeout time.Duration, config *genai.GenerateContentConfig) (string, error) {
	ctx, span := otel.Tracer("LLMClient").Start(ctx, "Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.stage", stage),
		attribute.Int("prompt.length", len(prompt)),
	)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	response, err := c.ai.GenerateResponse(ctx, prompt, config)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if ctx.Err() != nil {
			outcome = "timeout"
		}
	}
	c.metrics.LLMCallsTotal.Add(ctx, 1, otelmetricAttrs(stage, outcome))
	c.metrics.LLMCallDuration.Record(ctx, elapsed.Seconds(), otelmetricAttrs(stage, outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "LLM call failed")
		return "", fmt.Errorf("%s LLM call failed: %w", stage, err)
	}

	txt := extractText(response)
	if txt == "" {
		err := fmt.Errorf("no valid content from LLM for stage %s", stage)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Empty response from LLM")
		return "", err
	}
	span.SetAttributes(attribute.Int("response.length", len(txt)))
	span.SetStatus(codes.Ok, "LLM call completed")
	return txt, nil
}

func extractText(response *genai.GenerateContentResponse) string {
	for _, candidate := range response.Candidates {
		if candidate.Content != nil && len(candidate.Content.Parts) > 0 {
			return candidate.Content.Parts[0].Text
		}
	}
	return ""
}
