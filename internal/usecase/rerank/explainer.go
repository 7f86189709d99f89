// Package rerank explains the final candidates with one batched LLM call.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kailas-cloud/recodex/internal/domain"
	"github.com/kailas-cloud/recodex/internal/domain/product"
	"github.com/kailas-cloud/recodex/internal/llmjson"
	"github.com/kailas-cloud/recodex/internal/logger"
	"github.com/kailas-cloud/recodex/internal/metrics"
)

var pricePrinter = message.NewPrinter(language.Korean)

// Generator is the LLM capability.
type Generator interface {
	Generate(ctx context.Context, prompt string) (domain.GenerationResult, error)
}

// Style selects the prompt and the fields requested from the model.
type Style int

// Explanation styles.
const (
	// SingleShot asks for a recommendation reason only.
	SingleShot Style = iota
	// Research also asks for a review summary.
	Research
)

// Request is one batch to explain.
type Request struct {
	Style     Style
	Query     string
	UserNeeds string
	Category  string // single-shot prompt context, empty when unknown
	Products  []product.Product
}

// Explanation is the text attached to one product.
type Explanation struct {
	Reason        string
	ReviewSummary string // research only
	Fallback      bool   // at least one field came from a template
}

// Explainer produces explanations for every product in a request.
type Explainer struct {
	llm    Generator
	logger *zap.Logger
}

// NewExplainer creates an explainer.
func NewExplainer(llm Generator, logger *zap.Logger) *Explainer {
	return &Explainer{llm: llm, logger: logger}
}

type rawResult struct {
	Code          llmjson.Code `json:"product_code"`
	Reason        string       `json:"recommendation_reason"`
	ReviewSummary string       `json:"ai_review_summary"`
}

// Explain returns an explanation for every product, keyed by product code.
// Products the model skipped, or all of them when the call or parse fails,
// get templated text. Only provider misconfiguration is returned as an error.
func (e *Explainer) Explain(ctx context.Context, req Request) (map[string]Explanation, error) {
	out := make(map[string]Explanation, len(req.Products))
	if len(req.Products) == 0 {
		return out, nil
	}

	answered, err := e.ask(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrProviderMisconfigured) {
			return nil, err
		}
		metrics.RecommendFallbacksTotal.WithLabelValues("rerank").Inc()
		logger.With(ctx, e.logger).Warn("rerank failed, using fallback reasons",
			zap.Int("products", len(req.Products)),
			zap.Error(err),
		)
	}

	missing := 0
	for _, p := range req.Products {
		r := answered[p.Code]
		exp := Explanation{
			Reason:        strings.TrimSpace(r.Reason),
			ReviewSummary: strings.TrimSpace(r.ReviewSummary),
		}
		if exp.Reason == "" {
			exp.Reason = fallbackReason(req.Style, p)
			exp.Fallback = true
		}
		if req.Style == Research && exp.ReviewSummary == "" {
			exp.ReviewSummary = FallbackReviewSummary(p)
			exp.Fallback = true
		}
		if exp.Fallback {
			missing++
		}
		out[p.Code] = exp
	}

	if err == nil && missing > 0 {
		logger.With(ctx, e.logger).Warn("rerank response omitted products",
			zap.Int("missing", missing),
			zap.Int("products", len(req.Products)),
		)
	}
	return out, nil
}

func (e *Explainer) ask(ctx context.Context, req Request) (map[string]rawResult, error) {
	res, err := e.llm.Generate(ctx, buildPrompt(req))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Results []rawResult `json:"results"`
	}
	if err := llmjson.Decode(res.Text, &parsed); err != nil {
		return nil, err
	}

	byCode := make(map[string]rawResult, len(parsed.Results))
	for _, r := range parsed.Results {
		code := r.Code.String()
		if code == "" {
			continue
		}
		if _, dup := byCode[code]; !dup {
			byCode[code] = r
		}
	}
	return byCode, nil
}

func buildPrompt(req Request) string {
	if req.Style == Research {
		blocks := make([]string, len(req.Products))
		for i, p := range req.Products {
			blocks[i] = researchLine(p)
		}
		return fmt.Sprintf(researchPrompt, req.Query, req.UserNeeds, strings.Join(blocks, "\n\n"))
	}

	lines := make([]string, len(req.Products))
	for i, p := range req.Products {
		lines[i] = singleShotLine(p)
	}
	category := req.Category
	if category == "" {
		category = "상품"
	}
	return fmt.Sprintf(singleShotPrompt, category, req.Query, req.UserNeeds, strings.Join(lines, "\n"))
}

func singleShotLine(p product.Product) string {
	return fmt.Sprintf("- ID:%s | 품명:%s | 스펙:%s", p.Code, p.Name, p.PromptSpec())
}

func researchLine(p product.Product) string {
	return fmt.Sprintf("- 상품코드: %s\n  상품명: %s\n  브랜드: %s\n  가격: %s원\n  스펙: %s",
		p.Code, p.Name, p.Brand, FormatPrice(p.Price), p.SummaryText())
}

func fallbackReason(style Style, p product.Product) string {
	if style == Research {
		return fmt.Sprintf("%s %s은(는) 요구사항에 적합한 추천 제품입니다.", p.Brand, p.Name)
	}
	return fmt.Sprintf("%s의 신뢰도 높은 모델로, 사용자의 요구 성능을 충실히 만족하는 제품입니다.", p.Brand)
}

// FallbackReviewSummary is the templated review summary of a research result.
func FallbackReviewSummary(p product.Product) string {
	return fmt.Sprintf("%s은(는) 사용자분들께 좋은 평가를 받고 있습니다.", p.Name)
}

// FormatPrice renders a price with Korean digit grouping ("1,500,000").
func FormatPrice(v int64) string {
	return pricePrinter.Sprintf("%d", v)
}
