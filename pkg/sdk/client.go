package recodex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recodex/internal/config"
	"github.com/kailas-cloud/recodex/internal/db"
	"github.com/kailas-cloud/recodex/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/recodex/internal/db/redis"
	"github.com/kailas-cloud/recodex/internal/domain"
	"github.com/kailas-cloud/recodex/internal/domain/intent"
	"github.com/kailas-cloud/recodex/internal/domain/search/request"
	"github.com/kailas-cloud/recodex/internal/metrics"
	budgetrepo "github.com/kailas-cloud/recodex/internal/repository/budget"
	catalogrepo "github.com/kailas-cloud/recodex/internal/repository/catalog"
	categoryrepo "github.com/kailas-cloud/recodex/internal/repository/category"
	"github.com/kailas-cloud/recodex/internal/repository/embcache"
	sessionrepo "github.com/kailas-cloud/recodex/internal/repository/session"
	budgetuc "github.com/kailas-cloud/recodex/internal/usecase/budget"
	categoryuc "github.com/kailas-cloud/recodex/internal/usecase/category"
	embeddinguc "github.com/kailas-cloud/recodex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/recodex/internal/usecase/health"
	intentuc "github.com/kailas-cloud/recodex/internal/usecase/intent"
	llmuc "github.com/kailas-cloud/recodex/internal/usecase/llm"
	"github.com/kailas-cloud/recodex/internal/usecase/recommend"
	"github.com/kailas-cloud/recodex/internal/usecase/rerank"
	searchuc "github.com/kailas-cloud/recodex/internal/usecase/search"
	usageuc "github.com/kailas-cloud/recodex/internal/usecase/usage"
)

// Provider names used for budgets and usage reports.
const (
	providerEmbedding = "embedding"
	providerLLM       = "llm"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "recodex:"
	embeddingCacheTTL       = 7 * 24 * time.Hour
	embeddingTimeout        = 10 * time.Second
	llmTimeout              = 30 * time.Second
	budgetDailyTTL          = 48 * time.Hour
	budgetMonthTTL          = 62 * 24 * time.Hour
)

// Internal interfaces, swapped in tests.
type recommendUseCase interface {
	Recommend(ctx context.Context, query string) (recommend.SingleShotResult, error)
	Questions(ctx context.Context, query string) (recommend.QuestionSet, error)
	Research(
		ctx context.Context, searchID, query string, answers []intent.SurveyAnswer,
	) (recommend.ResearchResult, error)
}

// Client is the recodex SDK entry point.
type Client struct {
	catalog      *postgres.Store
	store        db.Store
	recommendSvc recommendUseCase
	healthSvc    healthUseCase
	usageSvc     usageUseCase
	obs          *observer
}

// New creates a Client and connects to the catalog and the key-value store.
// The provided context is used for the initial readiness checks.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{keyPrefix: defaultKeyPrefix}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.dsn == "" {
		return nil, errors.New("recodex: catalog dsn required (use WithPostgres)")
	}
	if len(cfg.addrs) == 0 {
		return nil, errors.New("recodex: key-value store address required (use WithRedis)")
	}

	catalog, err := postgres.Open(postgres.Config{DSN: cfg.dsn, MaxOpenConns: 10, MaxIdleConns: 2})
	if err != nil {
		return nil, fmt.Errorf("recodex: open catalog: %w", err)
	}
	if err := catalog.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		catalog.Close()
		return nil, fmt.Errorf("recodex: catalog not ready: %w", err)
	}

	store, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.addrs, Password: cfg.password})
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("recodex: create store: %w", err)
	}
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		catalog.Close()
		return nil, fmt.Errorf("recodex: store not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		catalog.Close()
		return nil, err
	}
	return wireClient(ctx, catalog, store, cfg, obs), nil
}

func wireClient(
	ctx context.Context, catalog *postgres.Store, store db.Store, cfg *clientConfig, obs *observer,
) *Client {
	logger := zap.NewNop()
	budgetStore := budgetrepo.New(store, budgetDailyTTL, budgetMonthTTL)
	embBudget := newTracker(ctx, providerEmbedding, cfg.keyPrefix, cfg.embeddingBudget, budgetStore, logger)
	llmBudget := newTracker(ctx, providerLLM, cfg.keyPrefix, cfg.llmBudget, budgetStore, logger)

	// Health and budget wiring take interfaces; keep them nil, not typed-nil.
	var (
		embChecker  healthuc.EmbeddingChecker
		llmReporter healthuc.BreakerReporter
		readers     []usageuc.BudgetReader
	)

	// Embedder: noop when not set, so the vector path degrades to keyword-only.
	var embedder domain.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		adapter := &embedderAdapter{inner: cfg.embedder}
		if hc, ok := cfg.embedder.(domain.HealthChecker); ok {
			embChecker = hc
		}
		embedder = embeddinguc.NewInstrumentedEmbedder(
			embcache.New(adapter, store, embcache.Config{
				KeyPrefix: cfg.keyPrefix,
				Model:     cfg.embeddingModel,
				TTL:       embeddingCacheTTL,
			}, metrics.EmbeddingCacheTotal, logger),
			providerEmbedding, cfg.embeddingModel, budgetChecker(embBudget), embeddingTimeout, logger,
		)
	}

	// Generator: noop when not set, so every LLM step takes its fallback.
	var generator domain.Generator = noopGenerator{}
	if cfg.generator != nil {
		instrumented := llmuc.NewInstrumentedGenerator(&generatorAdapter{inner: cfg.generator}, llmuc.Options{
			Provider:       providerLLM,
			Timeout:        llmTimeout,
			MaxFailures:    5,
			OpenTimeout:    30 * time.Second,
			HalfOpenProbes: 1,
		}, budgetChecker(llmBudget), logger)
		generator = instrumented
		llmReporter = instrumented
	}

	for _, t := range []*budgetuc.Tracker{embBudget, llmBudget} {
		if t != nil {
			readers = append(readers, t)
		}
	}

	catalogRepo := catalogrepo.New(catalog)
	resolver := categoryuc.NewResolver(categoryrepo.New(catalog), categoryuc.Config{
		MatchThreshold:     config.DefaultCategoryMatchThreshold,
		Overrides:          defaultOverrides(),
		SafetyLockKeywords: config.DefaultSafetyLockKeywords(),
	}, logger)

	topK := cfg.topK
	if topK <= 0 {
		topK = config.DefaultTopK
	}
	threshold := cfg.similarityThreshold
	if threshold <= 0 {
		threshold = config.DefaultSimilarityThreshold
	}

	recommendSvc := recommend.New(
		intentuc.NewExtractor(generator, resolver, logger),
		recommend.NewPipeline(resolver, searchuc.NewRetriever(catalogRepo, embedder, config.DefaultKeywordFloor, logger), logger),
		rerank.NewExplainer(generator, logger),
		catalogRepo,
		sessionrepo.New(store, cfg.keyPrefix, config.DefaultSessionTTLSec*time.Second, logger),
		recommend.Config{
			TopK:                topK,
			RerankPool:          max(topK, config.DefaultRerankPool),
			VectorWeight:        config.DefaultVectorWeight,
			KeywordWeight:       config.DefaultKeywordWeight,
			SimilarityThreshold: threshold,
			SingleShotLimits: request.Limits{
				Vector:  config.DefaultSingleShotVectorLimit,
				Keyword: config.DefaultSingleShotKeywordLimit,
			},
			ResearchVectorLimit: config.DefaultResearchVectorLimit,
		},
		logger,
	)

	return &Client{
		catalog:      catalog,
		store:        store,
		recommendSvc: recommendSvc,
		healthSvc:    healthuc.New(catalog, store, embChecker, llmReporter),
		usageSvc:     usageuc.New(readers...),
		obs:          obs,
	}
}

func newTracker(
	ctx context.Context, provider, keyPrefix string, b *Budget, s budgetuc.Store, logger *zap.Logger,
) *budgetuc.Tracker {
	if b == nil || (b.Daily <= 0 && b.Monthly <= 0) {
		return nil
	}
	action := budgetuc.ActionWarn
	if b.Reject {
		action = budgetuc.ActionReject
	}
	return budgetuc.NewTracker(provider, keyPrefix, budgetuc.Limits{
		Daily:   b.Daily,
		Monthly: b.Monthly,
		Action:  action,
	}, logger).WithStore(ctx, s)
}

// budgetChecker avoids wrapping a nil *Tracker in a non-nil interface.
func budgetChecker(t *budgetuc.Tracker) embeddinguc.BudgetChecker {
	if t == nil {
		return nil
	}
	return t
}

func defaultOverrides() []categoryuc.Override {
	in := config.DefaultKeywordOverrides()
	out := make([]categoryuc.Override, len(in))
	for i, o := range in {
		out[i] = categoryuc.Override{Keywords: o.Keywords, Category: o.Category, CategoryID: o.CategoryID}
	}
	return out
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
	if c.catalog != nil {
		c.catalog.Close()
	}
}

// Ping checks catalog and key-value store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.catalog.Ping(ctx); err != nil {
		return fmt.Errorf("ping catalog: %w", err)
	}
	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// generatorAdapter wraps public Generator to satisfy internal domain.Generator.
type generatorAdapter struct {
	inner Generator
}

func (a *generatorAdapter) Generate(ctx context.Context, prompt string) (domain.GenerationResult, error) {
	r, err := a.inner.Generate(ctx, prompt)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("generate: %w", err)
	}
	return domain.GenerationResult{
		Text:         r.Text,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// errNoEmbedder and errNoGenerator are provider failures, not misconfiguration:
// the flows degrade instead of failing.
var (
	errNoEmbedder  = fmt.Errorf("%w: embedder not configured (use WithEmbedder)", domain.ErrEmbeddingProviderError)
	errNoGenerator = fmt.Errorf("%w: generator not configured (use WithGenerator)", domain.ErrLLMProviderError)
)

type noopEmbedder struct{}

func (noopEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errNoEmbedder
}

type noopGenerator struct{}

func (noopGenerator) Generate(context.Context, string) (domain.GenerationResult, error) {
	return domain.GenerationResult{}, errNoGenerator
}
