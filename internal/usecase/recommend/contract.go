package recommend

import (
	"context"

	"github.com/kailas-cloud/recodex/internal/domain/intent"
	"github.com/kailas-cloud/recodex/internal/domain/product"
	"github.com/kailas-cloud/recodex/internal/domain/search/request"
	"github.com/kailas-cloud/recodex/internal/domain/session"
	"github.com/kailas-cloud/recodex/internal/usecase/category"
	"github.com/kailas-cloud/recodex/internal/usecase/rerank"
	"github.com/kailas-cloud/recodex/internal/usecase/search"
)

// CategoryResolver maps intent guesses to category filters.
type CategoryResolver interface {
	Resolve(ctx context.Context, guess, rawQuery string, useOverrides bool) (category.Resolution, error)
	Descendants(ctx context.Context, id int64) ([]int64, error)
	SafetyLocked(rawQuery, searchText string, res category.Resolution) bool
}

// Retriever runs the two retrieval paths.
type Retriever interface {
	Retrieve(ctx context.Context, req *request.Request) (search.Paths, error)
}

// IntentExtractor reads queries and surveys.
type IntentExtractor interface {
	Extract(ctx context.Context, query string) (intent.Intent, error)
	AnalyzeSurvey(ctx context.Context, query string, answers []intent.SurveyAnswer) (intent.Intent, error)
	GenerateQuestions(ctx context.Context, query string) ([]intent.Question, error)
}

// Explainer attaches reasons to the final products.
type Explainer interface {
	Explain(ctx context.Context, req rerank.Request) (map[string]rerank.Explanation, error)
}

// MallReader loads display metadata for products.
type MallReader interface {
	MallInfo(ctx context.Context, productIDs []int64) (map[int64]product.MallInfo, error)
}

// SessionStore keeps research sessions between the two steps.
type SessionStore interface {
	Create(ctx context.Context, query string, questions []intent.Question) string
	Lookup(ctx context.Context, id string) (session.Session, bool, error)
}
