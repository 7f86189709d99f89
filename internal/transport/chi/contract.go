package chi

import (
	"context"

	"github.com/kailas-cloud/recodex/internal/domain/intent"
	domusage "github.com/kailas-cloud/recodex/internal/domain/usage"
	healthuc "github.com/kailas-cloud/recodex/internal/usecase/health"
	"github.com/kailas-cloud/recodex/internal/usecase/recommend"
)

// Recommender serves both recommendation flows.
type Recommender interface {
	Recommend(ctx context.Context, query string) (recommend.SingleShotResult, error)
	Questions(ctx context.Context, query string) (recommend.QuestionSet, error)
	Research(
		ctx context.Context, searchID, query string, answers []intent.SurveyAnswer,
	) (recommend.ResearchResult, error)
}

// UsageReporter builds token budget reports.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
