package chi

import (
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/kailas-cloud/recodex/internal/domain/intent"
	domusage "github.com/kailas-cloud/recodex/internal/domain/usage"
	"github.com/kailas-cloud/recodex/internal/usecase/recommend"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeBadRequest            = "bad_request"
	codeUnauthorized          = "unauthorized"
	codeValidationFailed      = "validation_failed"
	codeProviderMisconfigured = "provider_misconfigured"
	codeRateLimited           = "rate_limited"
	codeQuotaExceeded         = "quota_exceeded"
	codeProviderError         = "provider_error"
	codeInternalError         = "internal_error"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RecommendRequest is the body of POST /api/v1/recommendations.
type RecommendRequest struct {
	UserQuery string `json:"user_query" validate:"required,min=5,max=500"`
}

// RecommendResponse answers a single-shot query.
type RecommendResponse struct {
	AnalysisMessage     string               `json:"analysis_message"`
	RecommendedProducts []RecommendedProduct `json:"recommended_products"`
}

// RecommendedProduct is one single-shot recommendation.
type RecommendedProduct struct {
	ProductCode          string         `json:"product_code"`
	Name                 string         `json:"name"`
	Brand                string         `json:"brand"`
	Price                int64          `json:"price"`
	ThumbnailURL         *string        `json:"thumbnail_url"`
	RecommendationReason string         `json:"recommendation_reason"`
	Specs                map[string]any `json:"specs"`
	ReviewCount          int            `json:"review_count"`
	ReviewRating         *float64       `json:"review_rating"`
}

// QuestionsRequest is the body of POST /api/v1/research/questions.
type QuestionsRequest struct {
	UserQuery string `json:"user_query" validate:"required,min=2,max=500"`
}

// QuestionsResponse opens a research session.
type QuestionsResponse struct {
	SearchID  string            `json:"search_id"`
	Questions []intent.Question `json:"questions"`
}

// ResearchRequest is the body of POST /api/v1/research/recommendations.
type ResearchRequest struct {
	SearchID       string          `json:"search_id" validate:"required"`
	UserQuery      string          `json:"user_query" validate:"required,min=2,max=500"`
	SurveyContents []SurveyContent `json:"survey_contents" validate:"required,min=4,max=10,dive"`
}

// SurveyContent is one answered question. Question may be omitted and is
// then backfilled from the session.
type SurveyContent struct {
	QuestionID int    `json:"question_id" validate:"gte=0"`
	Question   string `json:"question" validate:"max=500"`
	Answer     string `json:"answer" validate:"required,max=500"`
}

// ResearchResponse answers a completed survey.
type ResearchResponse struct {
	UserQuery string            `json:"user_query"`
	Message   string            `json:"message,omitempty"`
	Products  []ResearchProduct `json:"product"`
}

// ResearchProduct is one research recommendation.
type ResearchProduct struct {
	SimilarityScore      float64            `json:"similarity_score"`
	ProductImageURL      *string            `json:"product_image_url"`
	ProductName          string             `json:"product_name"`
	ProductCode          productCode        `json:"product_code"`
	RecommendationReason string             `json:"recommendation_reason"`
	Price                int64              `json:"price"`
	PerformanceScore     float64            `json:"performance_score"`
	ProductSpecs         ProductSpecs       `json:"product_specs"`
	AIReviewSummary      string             `json:"ai_review_summary"`
	ProductDetailURL     *string            `json:"product_detail_url"`
	OptimalProductInfo   OptimalProductInfo `json:"optimal_product_info"`
}

// ProductSpecs carries the rendered spec summary.
type ProductSpecs struct {
	Summary string `json:"summary"`
}

// OptimalProductInfo ranks the product within the answer.
type OptimalProductInfo struct {
	MatchRank     int  `json:"match_rank"`
	IsLowestPrice bool `json:"is_lowest_price"`
}

// productCode renders numeric catalog codes as JSON numbers and anything else as a string.
type productCode string

func (c productCode) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(c), 10, 64); err == nil {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(c))
}

// UsageResponse reports token budgets per AI provider.
type UsageResponse struct {
	Period        string         `json:"period"`
	PeriodStartAt *time.Time     `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time     `json:"period_end_at,omitempty"`
	Budgets       []BudgetStatus `json:"budgets"`
}

// BudgetStatus is one provider's budget.
type BudgetStatus struct {
	Provider        string     `json:"provider"`
	TokensUsed      int64      `json:"tokens_used"`
	TokensLimit     int64      `json:"tokens_limit"`
	TokensRemaining int64      `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

func recommendToDTO(res recommend.SingleShotResult) RecommendResponse {
	items := make([]RecommendedProduct, len(res.Products))
	for i, p := range res.Products {
		items[i] = RecommendedProduct{
			ProductCode:          p.ProductCode,
			Name:                 p.Name,
			Brand:                p.Brand,
			Price:                p.Price,
			ThumbnailURL:         p.ThumbnailURL,
			RecommendationReason: p.RecommendationReason,
			Specs:                p.Specs,
			ReviewCount:          p.ReviewCount,
			ReviewRating:         p.ReviewRating,
		}
	}
	return RecommendResponse{AnalysisMessage: res.AnalysisMessage, RecommendedProducts: items}
}

func questionsToDTO(qs recommend.QuestionSet) QuestionsResponse {
	return QuestionsResponse{SearchID: qs.SearchID, Questions: qs.Questions}
}

func answersFromDTO(in []SurveyContent) []intent.SurveyAnswer {
	out := make([]intent.SurveyAnswer, len(in))
	for i, c := range in {
		out[i] = intent.SurveyAnswer{QuestionID: c.QuestionID, Question: c.Question, Answer: c.Answer}
	}
	return out
}

func researchToDTO(res recommend.ResearchResult) ResearchResponse {
	items := make([]ResearchProduct, len(res.Products))
	for i, p := range res.Products {
		items[i] = ResearchProduct{
			SimilarityScore:      p.SimilarityScore,
			ProductImageURL:      p.ImageURL,
			ProductName:          p.Name,
			ProductCode:          productCode(p.ProductCode),
			RecommendationReason: p.RecommendationReason,
			Price:                p.Price,
			PerformanceScore:     p.PerformanceScore,
			ProductSpecs:         ProductSpecs{Summary: p.SpecSummary},
			AIReviewSummary:      p.ReviewSummary,
			ProductDetailURL:     p.DetailURL,
			OptimalProductInfo: OptimalProductInfo{
				MatchRank:     p.MatchRank,
				IsLowestPrice: p.IsLowestPrice,
			},
		}
	}
	return ResearchResponse{UserQuery: res.Query, Message: res.Message, Products: items}
}

func usageToDTO(report domusage.Report) UsageResponse {
	resp := UsageResponse{
		Period:  string(report.Period()),
		Budgets: make([]BudgetStatus, 0, len(report.Budgets())),
	}

	if report.PeriodStart() > 0 {
		start := time.UnixMilli(report.PeriodStart()).UTC()
		end := time.UnixMilli(report.PeriodEnd()).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}

	for _, b := range report.Budgets() {
		status := BudgetStatus{
			Provider:        b.Provider(),
			TokensUsed:      b.TokensUsed(),
			TokensLimit:     b.TokensLimit(),
			TokensRemaining: b.TokensRemaining(),
			IsExhausted:     b.IsExhausted(),
		}
		if b.ResetsAt() > 0 {
			resetsAt := time.UnixMilli(b.ResetsAt()).UTC()
			status.ResetsAt = &resetsAt
		}
		resp.Budgets = append(resp.Budgets, status)
	}
	return resp
}
