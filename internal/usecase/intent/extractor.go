// Package intent turns user queries and survey answers into structured search intents.
package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recodex/internal/domain"
	"github.com/kailas-cloud/recodex/internal/domain/category"
	"github.com/kailas-cloud/recodex/internal/domain/intent"
	"github.com/kailas-cloud/recodex/internal/llmjson"
	"github.com/kailas-cloud/recodex/internal/logger"
	"github.com/kailas-cloud/recodex/internal/metrics"
)

// Extractor calls the LLM and always returns a usable intent. The only error
// it surfaces is provider misconfiguration.
type Extractor struct {
	llm    Generator
	hints  Hinter
	logger *zap.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(llm Generator, hints Hinter, logger *zap.Logger) *Extractor {
	return &Extractor{llm: llm, hints: hints, logger: logger}
}

// rawIntent is the model's answer before defaults are applied.
type rawIntent struct {
	Category        *string         `json:"product_category"`
	SearchQuery     string          `json:"search_query"`
	Keywords        llmjson.Strings `json:"keywords"`
	MinPrice        llmjson.Int     `json:"min_price"`
	MaxPrice        llmjson.Int     `json:"max_price"`
	UserNeeds       string          `json:"user_needs"`
	Priorities      llmjson.Weights `json:"priorities"`
	AnalysisMessage string          `json:"analysis_message"`
}

// Extract reads a single-shot query. Unknown categories default to category.Other.
func (e *Extractor) Extract(ctx context.Context, query string) (intent.Intent, error) {
	prompt := fmt.Sprintf(extractPrompt, e.hints.HintList(ctx), query)

	raw, err := e.ask(ctx, prompt)
	if err != nil {
		if errors.Is(err, domain.ErrProviderMisconfigured) {
			return intent.Intent{}, err
		}
		e.degraded(ctx, "intent", err)
		return intent.Fallback(query), nil
	}

	in := raw.toIntent(query, query)
	if strings.TrimSpace(in.Category) == "" {
		in.Category = category.Other
	}
	e.normalizePrice(ctx, &in)
	return in, nil
}

// AnalyzeSurvey reads a research query with its answered questions. Answers
// must already carry question text (see session.Backfill).
func (e *Extractor) AnalyzeSurvey(ctx context.Context, query string, answers []intent.SurveyAnswer) (intent.Intent, error) {
	lines := make([]string, len(answers))
	for i, a := range answers {
		lines[i] = a.Line()
	}
	prompt := fmt.Sprintf(surveyPrompt, e.hints.HintList(ctx), query, strings.Join(lines, "\n"))

	raw, err := e.ask(ctx, prompt)
	if err != nil {
		if errors.Is(err, domain.ErrProviderMisconfigured) {
			return intent.Intent{}, err
		}
		e.degraded(ctx, "intent", err)
		return intent.SurveyFallback(query, answers), nil
	}

	in := raw.toIntent(query, query)
	e.normalizePrice(ctx, &in)
	return in, nil
}

func (e *Extractor) ask(ctx context.Context, prompt string) (rawIntent, error) {
	res, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		return rawIntent{}, err
	}
	var raw rawIntent
	if err := llmjson.Decode(res.Text, &raw); err != nil {
		return rawIntent{}, err
	}
	return raw, nil
}

func (r rawIntent) toIntent(query, needs string) intent.Intent {
	in := intent.Intent{
		SearchText:      strings.TrimSpace(r.SearchQuery),
		UserNeeds:       strings.TrimSpace(r.UserNeeds),
		MinPrice:        r.MinPrice.Ptr(),
		MaxPrice:        r.MaxPrice.Ptr(),
		Priorities:      r.Priorities,
		AnalysisMessage: strings.TrimSpace(r.AnalysisMessage),
	}
	if r.Category != nil {
		in.Category = strings.TrimSpace(*r.Category)
	}
	if in.SearchText == "" {
		in.SearchText = query
	}
	if in.UserNeeds == "" {
		in.UserNeeds = needs
	}
	for _, k := range r.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			in.Keywords = append(in.Keywords, k)
		}
	}
	if len(in.Keywords) == 0 {
		in.Keywords = []string{query}
	}
	return in
}

func (e *Extractor) normalizePrice(ctx context.Context, in *intent.Intent) {
	var minP, maxP int64
	if in.MinPrice != nil {
		minP = *in.MinPrice
	}
	if in.MaxPrice != nil {
		maxP = *in.MaxPrice
	}
	if in.NormalizePrice() {
		logger.With(ctx, e.logger).Warn("invalid price range ignored",
			zap.Int64("min_price", minP),
			zap.Int64("max_price", maxP),
		)
	}
}

func (e *Extractor) degraded(ctx context.Context, stage string, err error) {
	metrics.RecommendFallbacksTotal.WithLabelValues(stage).Inc()
	logger.With(ctx, e.logger).Warn("LLM stage degraded to fallback",
		zap.String("stage", stage),
		zap.Error(err),
	)
}

// rawQuestion accepts options as plain strings or {id,label} objects.
type rawQuestion struct {
	ID      int               `json:"question_id"`
	Text    string            `json:"question"`
	Options []json.RawMessage `json:"options"`
}

// GenerateQuestions asks for intent.QuestionCount multiple-choice questions.
// Fewer usable questions fall back to the defaults; extra ones are dropped.
func (e *Extractor) GenerateQuestions(ctx context.Context, query string) ([]intent.Question, error) {
	res, err := e.llm.Generate(ctx, fmt.Sprintf(questionPrompt, query))
	if err != nil {
		if errors.Is(err, domain.ErrProviderMisconfigured) {
			return nil, err
		}
		e.degraded(ctx, "questions", err)
		return intent.DefaultQuestions(), nil
	}

	var raw struct {
		Questions []rawQuestion `json:"questions"`
	}
	if err := llmjson.Decode(res.Text, &raw); err != nil {
		e.degraded(ctx, "questions", err)
		return intent.DefaultQuestions(), nil
	}

	qs := make([]intent.Question, 0, intent.QuestionCount)
	for i, rq := range raw.Questions {
		q, ok := rq.normalize(i + 1)
		if !ok {
			continue
		}
		qs = append(qs, q)
		if len(qs) == intent.QuestionCount {
			break
		}
	}
	if len(qs) < intent.QuestionCount {
		e.degraded(ctx, "questions", fmt.Errorf("only %d usable questions", len(qs)))
		return intent.DefaultQuestions(), nil
	}
	return qs, nil
}

func (rq rawQuestion) normalize(position int) (intent.Question, bool) {
	q := intent.Question{ID: rq.ID, Text: strings.TrimSpace(rq.Text)}
	if q.ID <= 0 {
		q.ID = position
	}
	if q.Text == "" {
		return intent.Question{}, false
	}

	for i, raw := range rq.Options {
		opt, ok := parseOption(raw, i+1)
		if ok {
			q.Options = append(q.Options, opt)
		}
	}
	return q, len(q.Options) > 0
}

func parseOption(raw json.RawMessage, position int) (intent.Option, bool) {
	var label string
	if err := json.Unmarshal(raw, &label); err == nil {
		label = strings.TrimSpace(label)
		return intent.Option{ID: position, Label: label}, label != ""
	}

	var opt intent.Option
	if err := json.Unmarshal(raw, &opt); err != nil {
		return intent.Option{}, false
	}
	opt.Label = strings.TrimSpace(opt.Label)
	if opt.ID <= 0 {
		opt.ID = position
	}
	return opt, opt.Label != ""
}
