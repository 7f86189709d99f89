package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/recodex/internal/config"
	"github.com/kailas-cloud/recodex/internal/db"
	"github.com/kailas-cloud/recodex/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/recodex/internal/db/redis"
	"github.com/kailas-cloud/recodex/internal/domain"
	"github.com/kailas-cloud/recodex/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/recodex/internal/logger"
	"github.com/kailas-cloud/recodex/internal/metrics"
	budgetrepo "github.com/kailas-cloud/recodex/internal/repository/budget"
	catalogrepo "github.com/kailas-cloud/recodex/internal/repository/catalog"
	categoryrepo "github.com/kailas-cloud/recodex/internal/repository/category"
	"github.com/kailas-cloud/recodex/internal/repository/embcache"
	sessionrepo "github.com/kailas-cloud/recodex/internal/repository/session"
	chiTransport "github.com/kailas-cloud/recodex/internal/transport/chi"
	"github.com/kailas-cloud/recodex/internal/transport/gemini"
	openaiEmb "github.com/kailas-cloud/recodex/internal/transport/openai"
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
	"github.com/kailas-cloud/recodex/internal/version"
)

// Budget counter TTLs: a day key outlives its day, a month key its month.
const (
	budgetDailyTTL = 48 * time.Hour
	budgetMonthTTL = 62 * 24 * time.Hour
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting recodex API server",
		zap.String("build", version.String()),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("cache_addrs", cfg.Cache.Addrs),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("llm_model", cfg.LLM.Model),
	)

	ctx := context.Background()

	// Catalog (read-only Postgres)
	catalog, err := postgres.Open(postgres.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to open catalog database", zap.Error(err))
	}
	defer catalog.Close()

	if err := catalog.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Catalog database not ready", zap.Error(err))
	}
	logger.Info("Connected to catalog database")

	// Key-value store for sessions, embedding cache and budgets
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Cache.Addrs,
		Username: cfg.Cache.Username,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create cache store", zap.Error(err))
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Cache store not ready", zap.Error(err))
	}
	logger.Info("Connected to cache store")

	// Register AI and recommendation metrics explicitly (no init())
	metrics.Register()

	// One tracker per provider, shared by its decorator and the usage report.
	budgetStore := budgetrepo.New(store, budgetDailyTTL, budgetMonthTTL)
	embBudget := newTracker(ctx, cfg.Embedding.Provider, cfg.Embedding.Budget, cfg.Storage.KeyPrefix, budgetStore, logger)
	llmBudget := newTracker(ctx, cfg.LLM.Provider, cfg.LLM.Budget, cfg.Storage.KeyPrefix, budgetStore, logger)

	embedder, embeddingProvider := buildEmbedder(cfg, store, embBudget, logger)
	generator := buildGenerator(ctx, cfg, llmBudget, logger)
	logger.Info("AI providers created",
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("llm_provider", cfg.LLM.Provider),
	)

	// Repositories
	catalogRepo := catalogrepo.New(catalog)
	categoryRepo := categoryrepo.New(catalog)
	sessions := sessionrepo.New(store, cfg.Storage.KeyPrefix,
		time.Duration(cfg.Session.TTLSec)*time.Second, logger)

	// Use cases
	rc := cfg.Recommend
	resolver := categoryuc.NewResolver(categoryRepo, categoryuc.Config{
		MatchThreshold:     rc.CategoryMatchThreshold,
		Overrides:          overridesFromConfig(rc.KeywordOverrides),
		SafetyLockKeywords: rc.SafetyLockKeywords,
	}, logger)
	extractor := intentuc.NewExtractor(generator, resolver, logger)
	retriever := searchuc.NewRetriever(catalogRepo, embedder, rc.KeywordFloor, logger)
	pipeline := recommend.NewPipeline(resolver, retriever, logger)
	explainer := rerank.NewExplainer(generator, logger)

	recommendSvc := recommend.New(extractor, pipeline, explainer, catalogRepo, sessions, recommend.Config{
		TopK:                rc.TopK,
		RerankPool:          rc.RerankPool,
		VectorWeight:        rc.VectorWeight,
		KeywordWeight:       rc.KeywordWeight,
		SimilarityThreshold: rc.SimilarityThreshold,
		SingleShotLimits:    request.Limits{Vector: rc.SingleShot.VectorLimit, Keyword: rc.SingleShot.KeywordLimit},
		ResearchVectorLimit: rc.Research.VectorLimit,
		ResearchOverrides:   rc.Research.UseOverrides,
	}, logger)

	usageSvc := usageuc.New(budgetReaders(embBudget, llmBudget)...)
	healthSvc := healthuc.New(catalog, store, embeddingProvider, generator)

	// Create chi server
	server := chiTransport.NewServer(recommendSvc, usageSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// newTracker returns nil when the provider has no budget configured.
func newTracker(
	ctx context.Context, provider string, bc config.BudgetConfig, keyPrefix string,
	s budgetuc.Store, logger *zap.Logger,
) *budgetuc.Tracker {
	if !bc.Enabled() {
		return nil
	}
	action := budgetuc.ActionWarn
	if bc.Action == string(budgetuc.ActionReject) {
		action = budgetuc.ActionReject
	}
	return budgetuc.NewTracker(provider, keyPrefix, budgetuc.Limits{
		Daily:   bc.DailyTokenLimit,
		Monthly: bc.MonthlyTokenLimit,
		Action:  action,
	}, logger).WithStore(ctx, s)
}

// budgetReaders skips unconfigured trackers.
// Go gotcha: a nil *Tracker wrapped in an interface is not a nil interface.
func budgetReaders(trackers ...*budgetuc.Tracker) []usageuc.BudgetReader {
	out := make([]usageuc.BudgetReader, 0, len(trackers))
	for _, t := range trackers {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
// The bare provider is returned too; health checks bypass the cache and the budget.
func buildEmbedder(
	cfg config.Config, store db.Store, budget *budgetuc.Tracker, logger *zap.Logger,
) (domain.Embedder, *openaiEmb.Embedder) {
	ec := cfg.Embedding

	// Base provider (with transport metrics built-in)
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Logger:     logger,
	})

	// Cached
	var embedder domain.Embedder = embcache.New(base, store, embcache.Config{
		KeyPrefix:  cfg.Storage.KeyPrefix,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		TTL:        time.Duration(ec.CacheTTLSec) * time.Second,
	}, metrics.EmbeddingCacheTotal, logger)

	// Instrumented (budget, timeout, usage)
	var checker embeddinguc.BudgetChecker
	if budget != nil {
		checker = budget
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, ec.Provider, ec.Model, checker, time.Duration(ec.TimeoutSec)*time.Second, logger,
	)

	// Instruction prefix (outermost, so the cache key includes it)
	if ec.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, ec.QueryInstruction), base
	}
	return embedder, base
}

// buildGenerator wraps the Gemini client with budget, rate limit, timeout and breaker.
func buildGenerator(
	ctx context.Context, cfg config.Config, budget *budgetuc.Tracker, logger *zap.Logger,
) *llmuc.InstrumentedGenerator {
	lc := cfg.LLM

	base, err := gemini.NewGenerator(ctx, &gemini.Config{
		APIKey:          lc.APIKey,
		Model:           lc.Model,
		Temperature:     lc.Temperature,
		MaxOutputTokens: lc.MaxOutputTokens,
		Provider:        lc.Provider,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	var checker llmuc.BudgetChecker
	if budget != nil {
		checker = budget
	}
	return llmuc.NewInstrumentedGenerator(base, llmuc.Options{
		Provider:       lc.Provider,
		Model:          lc.Model,
		Timeout:        time.Duration(lc.TimeoutSec) * time.Second,
		RateLimit:      rate.Limit(lc.RateLimitRPS),
		Burst:          lc.RateLimitBurst,
		MaxFailures:    lc.Breaker.MaxFailures,
		OpenTimeout:    time.Duration(lc.Breaker.OpenTimeoutSec) * time.Second,
		HalfOpenProbes: lc.Breaker.HalfOpenProbes,
	}, checker, logger)
}

func overridesFromConfig(in []config.KeywordOverride) []categoryuc.Override {
	out := make([]categoryuc.Override, len(in))
	for i, o := range in {
		out[i] = categoryuc.Override{Keywords: o.Keywords, Category: o.Category, CategoryID: o.CategoryID}
	}
	return out
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    "internal_error",
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Token headers are set by the handler before the body is written.
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
				zap.String("embedding_tokens", ww.Header().Get(metrics.HeaderEmbeddingTokens)),
				zap.String("llm_tokens", ww.Header().Get(metrics.HeaderLLMTokens)),
			)
		})
	}
}
