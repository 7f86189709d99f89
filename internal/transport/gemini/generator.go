// Package gemini adapts the Gemini API to domain.Generator.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/recodex/internal/domain"
	"github.com/kailas-cloud/recodex/internal/metrics"
)

// PlaceholderKey is the sample value shipped in config templates.
const PlaceholderKey = "your-gemini-api-key"

// Config holds the generator settings.
type Config struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	Provider        string
	Logger          *zap.Logger
}

// Generator calls generateContent with a JSON response MIME type.
type Generator struct {
	models   contentGenerator
	model    string
	config   *genai.GenerateContentConfig
	provider string
	keyErr   error
	logger   *zap.Logger
}

// contentGenerator is the slice of genai.Models the generator needs.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// NewGenerator creates a Gemini generator. A missing or placeholder key does not
// fail construction; Generate reports it as misconfiguration on every call.
func NewGenerator(ctx context.Context, cfg *Config) (*Generator, error) {
	g := &Generator{
		model:    cfg.Model,
		provider: cfg.Provider,
		logger:   cfg.Logger,
		config:   generateConfig(cfg.Temperature, cfg.MaxOutputTokens),
	}

	g.keyErr = checkKey(cfg.Provider, strings.TrimSpace(cfg.APIKey))
	if g.keyErr != nil {
		g.logger.Error("LLM provider misconfigured", zap.String("provider", cfg.Provider), zap.Error(g.keyErr))
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.models = client.Models
	return g, nil
}

func generateConfig(temperature float32, maxOutput int32) *genai.GenerateContentConfig {
	c := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	}
	if maxOutput > 0 {
		c.MaxOutputTokens = maxOutput
	}
	return c
}

func checkKey(provider, key string) error {
	switch key {
	case "":
		return domain.NewMisconfigured(provider, "api key is not set")
	case PlaceholderKey:
		return domain.NewMisconfigured(provider, "api key is the template placeholder")
	}
	return nil
}

// Generate implements domain.Generator. The returned text is raw model output.
func (g *Generator) Generate(ctx context.Context, prompt string) (domain.GenerationResult, error) {
	if g.keyErr != nil {
		g.countError("misconfigured")
		return domain.GenerationResult{}, g.keyErr
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	duration := time.Since(start)

	if err != nil {
		g.countError("api_error")
		return domain.GenerationResult{}, g.mapError(err)
	}

	result, err := responseText(resp)
	if err != nil {
		g.countError("empty_response")
		return domain.GenerationResult{}, err
	}

	metrics.AIRequestsTotal.WithLabelValues(metrics.KindLLM, g.provider, g.model, "success").Inc()
	metrics.AIRequestDuration.WithLabelValues(metrics.KindLLM, g.provider, g.model).Observe(duration.Seconds())
	if result.TotalTokens > 0 {
		tokens := metrics.AITokensTotal
		tokens.WithLabelValues(metrics.KindLLM, g.provider, g.model, "prompt").Add(float64(result.PromptTokens))
		tokens.WithLabelValues(metrics.KindLLM, g.provider, g.model, "total").Add(float64(result.TotalTokens))
	}

	return result, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (domain.GenerationResult, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return domain.GenerationResult{}, fmt.Errorf("no candidates: %w", domain.ErrLLMProviderError)
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return domain.GenerationResult{}, fmt.Errorf("no content (finish reason %q): %w",
			cand.FinishReason, domain.ErrLLMProviderError)
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return domain.GenerationResult{}, fmt.Errorf("empty text: %w", domain.ErrLLMProviderError)
	}

	out := domain.GenerationResult{Text: sb.String()}
	if u := resp.UsageMetadata; u != nil {
		out.PromptTokens = int(u.PromptTokenCount)
		out.TotalTokens = int(u.TotalTokenCount)
	}
	return out, nil
}

func (g *Generator) countError(errType string) {
	metrics.AIRequestsTotal.WithLabelValues(metrics.KindLLM, g.provider, g.model, "error").Inc()
	metrics.AIErrorsTotal.WithLabelValues(metrics.KindLLM, g.provider, g.model, errType).Inc()
}

// mapError turns rejected credentials into misconfiguration and wraps the rest
// as provider errors.
func (g *Generator) mapError(err error) error {
	code, msg := apiErrorCode(err)
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewMisconfigured(g.provider, "api key rejected: "+msg)
	case http.StatusBadRequest:
		if strings.Contains(msg, "API key not valid") {
			return domain.NewMisconfigured(g.provider, "api key rejected: "+msg)
		}
	case http.StatusTooManyRequests:
		return fmt.Errorf("gemini %d: %s: %w: %w", code, msg, domain.ErrRateLimited, domain.ErrLLMProviderError)
	}
	return fmt.Errorf("gemini request failed: %v: %w", err, domain.ErrLLMProviderError)
}

func apiErrorCode(err error) (int, string) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Message
	}
	return 0, err.Error()
}
