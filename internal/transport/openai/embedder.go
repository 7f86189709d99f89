// Package openai adapts OpenAI-compatible embedding APIs to domain.Embedder.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recodex/internal/domain"
	"github.com/kailas-cloud/recodex/internal/metrics"
)

// PlaceholderKey is the sample value shipped in config templates.
const PlaceholderKey = "your-openai-api-key"

var (
	_ domain.Embedder      = (*Embedder)(nil)
	_ domain.HealthChecker = (*Embedder)(nil)
)

// Embedder is an embedding provider using the OpenAI-compatible API.
type Embedder struct {
	client     *openai.Client
	apiKey     string
	model      openai.EmbeddingModel
	dimensions int
	provider   string
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Provider   string
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
// A missing key is not an error here; Embed reports it per request.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		provider:   cfg.Provider,
		logger:     cfg.Logger,
	}
}

// Embed implements domain.Embedder with transport-level metrics.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := e.checkKey(); err != nil {
		e.countError("misconfigured")
		return domain.EmbeddingResult{}, err
	}

	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		e.countError("api_error")
		return domain.EmbeddingResult{}, e.parseAPIError(err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		e.countError("empty_response")
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	model := string(e.model)
	metrics.AIRequestsTotal.WithLabelValues(metrics.KindEmbedding, e.provider, model, "success").Inc()
	metrics.AIRequestDuration.WithLabelValues(metrics.KindEmbedding, e.provider, model).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		tokens := metrics.AITokensTotal
		tokens.WithLabelValues(metrics.KindEmbedding, e.provider, model, "prompt").Add(float64(resp.Usage.PromptTokens))
		tokens.WithLabelValues(metrics.KindEmbedding, e.provider, model, "total").Add(float64(resp.Usage.TotalTokens))
	}

	return domain.EmbeddingResult{
		Embedding:    resp.Data[0].Embedding,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if err := e.checkKey(); err != nil {
		return err
	}
	if _, err := e.client.ListModels(ctx); err != nil {
		return e.parseAPIError(err)
	}
	return nil
}

func (e *Embedder) checkKey() error {
	switch e.apiKey {
	case "":
		return domain.NewMisconfigured(e.provider, "api key is not set")
	case PlaceholderKey:
		return domain.NewMisconfigured(e.provider, "api key is the template placeholder")
	}
	return nil
}

func (e *Embedder) countError(errType string) {
	model := string(e.model)
	metrics.AIRequestsTotal.WithLabelValues(metrics.KindEmbedding, e.provider, model, "error").Inc()
	metrics.AIErrorsTotal.WithLabelValues(metrics.KindEmbedding, e.provider, model, errType).Inc()
}

// parseAPIError maps API failures onto domain errors. A 401 means the key was
// rejected and is reported as misconfiguration; everything else is a provider error.
func (e *Embedder) parseAPIError(err error) error {
	status, detail := 0, ""

	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	switch {
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		detail = extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		detail = apiErr.Message
	default:
		return fmt.Errorf("embedding request failed: %v: %w", err, domain.ErrEmbeddingProviderError)
	}

	switch status {
	case http.StatusUnauthorized:
		return domain.NewMisconfigured(e.provider, "api key rejected: "+detail)
	case http.StatusTooManyRequests:
		return fmt.Errorf("embedding API error %d: %s: %w: %w",
			status, detail, domain.ErrRateLimited, domain.ErrEmbeddingProviderError)
	}
	return fmt.Errorf("embedding API error %d: %s: %w", status, detail, domain.ErrEmbeddingProviderError)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
