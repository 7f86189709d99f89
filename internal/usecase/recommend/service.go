// Package recommend runs the single-shot and two-step research recommendation flows.
package recommend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recodex/internal/domain/intent"
	"github.com/kailas-cloud/recodex/internal/domain/product"
	"github.com/kailas-cloud/recodex/internal/domain/search/candidate"
	"github.com/kailas-cloud/recodex/internal/domain/search/mode"
	"github.com/kailas-cloud/recodex/internal/domain/search/request"
	"github.com/kailas-cloud/recodex/internal/domain/session"
	"github.com/kailas-cloud/recodex/internal/logger"
	"github.com/kailas-cloud/recodex/internal/metrics"
	"github.com/kailas-cloud/recodex/internal/usecase/rerank"
	"github.com/kailas-cloud/recodex/internal/usecase/search"
)

// Flow labels.
const (
	FlowSingleShot = "single_shot"
	FlowResearch   = "research"
)

// Config holds flow tuning.
type Config struct {
	TopK                int
	RerankPool          int
	VectorWeight        float64
	KeywordWeight       float64
	SimilarityThreshold float64
	SingleShotLimits    request.Limits
	ResearchVectorLimit int
	ResearchOverrides   bool
}

// Service orchestrates both recommendation flows over the shared pipeline.
type Service struct {
	extractor IntentExtractor
	pipeline  *Pipeline
	explainer Explainer
	malls     MallReader
	sessions  SessionStore
	cfg       Config
	logger    *zap.Logger

	singleShot Policy
	research   Policy
}

// New creates the recommendation service.
func New(
	extractor IntentExtractor, pipeline *Pipeline, explainer Explainer,
	malls MallReader, sessions SessionStore, cfg Config, logger *zap.Logger,
) *Service {
	return &Service{
		extractor: extractor,
		pipeline:  pipeline,
		explainer: explainer,
		malls:     malls,
		sessions:  sessions,
		cfg:       cfg,
		logger:    logger,
		singleShot: Policy{
			Flow:         FlowSingleShot,
			Fuser:        search.WeightedSum{VectorWeight: cfg.VectorWeight, KeywordWeight: cfg.KeywordWeight},
			Fusion:       mode.WeightedSum,
			Distance:     mode.L2,
			Limits:       cfg.SingleShotLimits,
			Threshold:    search.ThresholdPolicy{Target: cfg.RerankPool},
			UseOverrides: true,
			SafetyLock:   true,
		},
		research: Policy{
			Flow:         FlowResearch,
			Fuser:        search.VectorOnly{},
			Fusion:       mode.VectorOnly,
			Distance:     mode.Cosine,
			Limits:       request.Limits{Vector: cfg.ResearchVectorLimit},
			Threshold:    search.ThresholdPolicy{Min: cfg.SimilarityThreshold, Target: cfg.TopK},
			UseOverrides: cfg.ResearchOverrides,
			SafetyLock:   true,
		},
	}
}

// Recommend answers a natural-language query. The rerank pool is explained
// in one LLM call and the first TopK are returned.
func (s *Service) Recommend(ctx context.Context, query string) (SingleShotResult, error) {
	in, err := s.extractor.Extract(ctx, query)
	if err != nil {
		return SingleShotResult{}, s.fail(FlowSingleShot, fmt.Errorf("extract intent: %w", err))
	}

	out, err := s.pipeline.Run(ctx, s.singleShot, Input{Query: query, Intent: in})
	if err != nil {
		return SingleShotResult{}, s.fail(FlowSingleShot, err)
	}

	name := out.CategoryName(in)
	if len(out.Candidates) == 0 {
		s.observe(FlowSingleShot, 0)
		return SingleShotResult{AnalysisMessage: noResults(name), Products: []SingleShotItem{}}, nil
	}

	exps, err := s.explainer.Explain(ctx, rerank.Request{
		Style:     rerank.SingleShot,
		Query:     query,
		UserNeeds: in.UserNeeds,
		Category:  name,
		Products:  productsOf(out.Candidates),
	})
	if err != nil {
		return SingleShotResult{}, s.fail(FlowSingleShot, fmt.Errorf("explain: %w", err))
	}

	top := out.Candidates[:min(s.cfg.TopK, len(out.Candidates))]
	malls, err := s.mallInfo(ctx, top)
	if err != nil {
		return SingleShotResult{}, s.fail(FlowSingleShot, err)
	}

	s.observe(FlowSingleShot, len(top))
	return assembleSingleShot(in, name, top, exps, malls), nil
}

// Questions generates the research question set and opens a session for it.
func (s *Service) Questions(ctx context.Context, query string) (QuestionSet, error) {
	qs, err := s.extractor.GenerateQuestions(ctx, query)
	if err != nil {
		return QuestionSet{}, fmt.Errorf("generate questions: %w", err)
	}
	id := s.sessions.Create(ctx, query, qs)
	return QuestionSet{SearchID: id, Questions: qs}, nil
}

// Research recommends from survey answers. A missing or unreadable session
// only loses the cached question texts.
func (s *Service) Research(
	ctx context.Context, searchID, query string, answers []intent.SurveyAnswer,
) (ResearchResult, error) {
	log := logger.With(ctx, s.logger, zap.String("search_id", searchID))

	var cached *session.Session
	sess, found, err := s.sessions.Lookup(ctx, searchID)
	switch {
	case err != nil:
		log.Warn("research session unreadable, continuing without it", zap.Error(err))
	case !found:
		log.Warn("research session missing or expired")
	default:
		cached = &sess
	}
	answers = session.Backfill(answers, cached)

	in, err := s.extractor.AnalyzeSurvey(ctx, query, answers)
	if err != nil {
		return ResearchResult{}, s.fail(FlowResearch, fmt.Errorf("analyze survey: %w", err))
	}

	out, err := s.pipeline.Run(ctx, s.research, Input{Query: query, Intent: in})
	if err != nil {
		return ResearchResult{}, s.fail(FlowResearch, err)
	}

	if len(out.Candidates) == 0 {
		s.observe(FlowResearch, 0)
		return ResearchResult{Query: query, Message: noResults(""), Products: []ResearchItem{}}, nil
	}

	exps, err := s.explainer.Explain(ctx, rerank.Request{
		Style:     rerank.Research,
		Query:     query,
		UserNeeds: in.UserNeeds,
		Products:  productsOf(out.Candidates),
	})
	if err != nil {
		return ResearchResult{}, s.fail(FlowResearch, fmt.Errorf("explain: %w", err))
	}

	malls, err := s.mallInfo(ctx, out.Candidates)
	if err != nil {
		return ResearchResult{}, s.fail(FlowResearch, err)
	}

	s.observe(FlowResearch, len(out.Candidates))
	return assembleResearch(query, out.Candidates, exps, malls), nil
}

func (s *Service) mallInfo(ctx context.Context, cs []candidate.Candidate) (map[int64]product.MallInfo, error) {
	ids := make([]int64, len(cs))
	for i, c := range cs {
		ids[i] = c.Product().ID
	}
	malls, err := s.malls.MallInfo(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load mall info: %w", err)
	}
	return malls, nil
}

func (s *Service) observe(flow string, results int) {
	outcome := "ok"
	if results == 0 {
		outcome = "empty"
	}
	metrics.RecommendRequestsTotal.WithLabelValues(flow, outcome).Inc()
	metrics.RecommendResults.WithLabelValues(flow).Observe(float64(results))
}

func (s *Service) fail(flow string, err error) error {
	metrics.RecommendRequestsTotal.WithLabelValues(flow, "error").Inc()
	return err
}

func productsOf(cs []candidate.Candidate) []product.Product {
	out := make([]product.Product, len(cs))
	for i, c := range cs {
		out[i] = c.Product()
	}
	return out
}
