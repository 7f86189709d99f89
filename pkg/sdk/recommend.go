package recodex

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/recodex/internal/domain"
	"github.com/kailas-cloud/recodex/internal/domain/intent"
	"github.com/kailas-cloud/recodex/internal/usecase/recommend"
)

// TokenUsage is what one call spent on AI providers. Cache hits cost nothing.
type TokenUsage struct {
	EmbeddingTokens int64
	LLMTokens       int64
}

// Recommendation is the answer to a single-shot query.
type Recommendation struct {
	AnalysisMessage string
	Products        []Product
	Usage           TokenUsage
}

// Product is one recommended catalog product.
type Product struct {
	Code         string
	Name         string
	Brand        string
	Price        int64 // KRW
	ThumbnailURL string
	Reason       string
	Specs        map[string]any
	ReviewCount  int
	ReviewRating *float64
}

// Question is one multiple-choice research question.
type Question struct {
	ID      int
	Text    string
	Options []QuestionOption
}

// QuestionOption is a selectable answer.
type QuestionOption struct {
	ID    int
	Label string
}

// QuestionSet opens a research session. Pass SearchID back to Research.
type QuestionSet struct {
	SearchID  string
	Questions []Question
	Usage     TokenUsage
}

// SurveyAnswer answers one question of a QuestionSet.
type SurveyAnswer struct {
	QuestionID int
	Question   string
	Answer     string
}

// ResearchResult is the answer to a completed survey. Message is set only
// when no product met the similarity threshold.
type ResearchResult struct {
	Query    string
	Message  string
	Products []ResearchProduct
	Usage    TokenUsage
}

// ResearchProduct is one product of a research recommendation.
type ResearchProduct struct {
	Code             string
	Name             string
	Price            int64
	SimilarityScore  float64
	PerformanceScore float64
	ImageURL         string
	DetailURL        string
	Reason           string
	ReviewSummary    string
	SpecSummary      string
	MatchRank        int
	IsLowestPrice    bool
}

// Recommend answers a natural-language shopping query.
func (c *Client) Recommend(ctx context.Context, query string) (rec Recommendation, err error) {
	start := time.Now()
	defer func() { c.obs.observeUsage("recommend", start, rec.Usage, err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return Recommendation{}, invalidf("query is required")
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	res, err := c.recommendSvc.Recommend(ctx, query)
	if err != nil {
		return Recommendation{Usage: tokenUsage(usage)}, fmt.Errorf("recommend: %w", err)
	}

	products := make([]Product, len(res.Products))
	for i, p := range res.Products {
		products[i] = Product{
			Code:         p.ProductCode,
			Name:         p.Name,
			Brand:        p.Brand,
			Price:        p.Price,
			ThumbnailURL: deref(p.ThumbnailURL),
			Reason:       p.RecommendationReason,
			Specs:        p.Specs,
			ReviewCount:  p.ReviewCount,
			ReviewRating: p.ReviewRating,
		}
	}
	return Recommendation{
		AnalysisMessage: res.AnalysisMessage,
		Products:        products,
		Usage:           tokenUsage(usage),
	}, nil
}

// Questions starts a research session with four survey questions.
func (c *Client) Questions(ctx context.Context, query string) (qs QuestionSet, err error) {
	start := time.Now()
	defer func() { c.obs.observeUsage("questions", start, qs.Usage, err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return QuestionSet{}, invalidf("query is required")
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	res, err := c.recommendSvc.Questions(ctx, query)
	if err != nil {
		return QuestionSet{Usage: tokenUsage(usage)}, fmt.Errorf("questions: %w", err)
	}
	return questionSetFromDomain(res, tokenUsage(usage)), nil
}

// Research recommends products for a completed survey. searchID comes from
// Questions; every question must be answered.
func (c *Client) Research(
	ctx context.Context, searchID, query string, answers []SurveyAnswer,
) (rr ResearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observeUsage("research", start, rr.Usage, err) }()

	in, err := researchInput(searchID, query, answers)
	if err != nil {
		return ResearchResult{}, err
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	res, err := c.recommendSvc.Research(ctx, strings.TrimSpace(searchID), strings.TrimSpace(query), in)
	if err != nil {
		return ResearchResult{Usage: tokenUsage(usage)}, fmt.Errorf("research: %w", err)
	}
	return researchFromDomain(res, tokenUsage(usage)), nil
}

func researchInput(searchID, query string, answers []SurveyAnswer) ([]intent.SurveyAnswer, error) {
	if strings.TrimSpace(searchID) == "" {
		return nil, invalidf("search id is required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, invalidf("query is required")
	}
	if len(answers) < intent.QuestionCount {
		return nil, invalidf("%d answers required, got %d", intent.QuestionCount, len(answers))
	}

	out := make([]intent.SurveyAnswer, len(answers))
	for i, a := range answers {
		if strings.TrimSpace(a.Answer) == "" {
			return nil, invalidf("answer %d is empty", i+1)
		}
		out[i] = intent.SurveyAnswer{
			QuestionID: a.QuestionID,
			Question:   strings.TrimSpace(a.Question),
			Answer:     strings.TrimSpace(a.Answer),
		}
	}
	return out, nil
}

func questionSetFromDomain(res recommend.QuestionSet, u TokenUsage) QuestionSet {
	questions := make([]Question, len(res.Questions))
	for i, q := range res.Questions {
		opts := make([]QuestionOption, len(q.Options))
		for j, o := range q.Options {
			opts[j] = QuestionOption{ID: o.ID, Label: o.Label}
		}
		questions[i] = Question{ID: q.ID, Text: q.Text, Options: opts}
	}
	return QuestionSet{SearchID: res.SearchID, Questions: questions, Usage: u}
}

func researchFromDomain(res recommend.ResearchResult, u TokenUsage) ResearchResult {
	products := make([]ResearchProduct, len(res.Products))
	for i, p := range res.Products {
		products[i] = ResearchProduct{
			Code:             p.ProductCode,
			Name:             p.Name,
			Price:            p.Price,
			SimilarityScore:  p.SimilarityScore,
			PerformanceScore: p.PerformanceScore,
			ImageURL:         deref(p.ImageURL),
			DetailURL:        deref(p.DetailURL),
			Reason:           p.RecommendationReason,
			ReviewSummary:    p.ReviewSummary,
			SpecSummary:      p.SpecSummary,
			MatchRank:        p.MatchRank,
			IsLowestPrice:    p.IsLowestPrice,
		}
	}
	return ResearchResult{Query: res.Query, Message: res.Message, Products: products, Usage: u}
}

func tokenUsage(u *domain.AIUsage) TokenUsage {
	if u == nil {
		return TokenUsage{}
	}
	return TokenUsage{EmbeddingTokens: u.EmbeddingTokens(), LLMTokens: u.LLMTokens()}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidRequest}, args...)...)
}
