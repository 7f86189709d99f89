package chi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recodex/internal/domain"
	domusage "github.com/kailas-cloud/recodex/internal/domain/usage"
	"github.com/kailas-cloud/recodex/internal/metrics"
	healthuc "github.com/kailas-cloud/recodex/internal/usecase/health"
	"github.com/kailas-cloud/recodex/internal/version"
)

// maxBodyBytes caps request bodies; the largest legitimate body is a survey.
const maxBodyBytes = 64 << 10

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the recommendation HTTP API.
type Server struct {
	recommend     Recommender
	usage         UsageReporter
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(recommend Recommender, usage UsageReporter, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		recommend: recommend,
		usage:     usage,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		misconfiguredHandler,
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrLLMProviderError, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// Mount registers all routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recommendations", s.Recommend)
		r.Post("/research/questions", s.ResearchQuestions)
		r.Post("/research/recommendations", s.ResearchRecommendations)
		r.Get("/usage", s.GetUsage)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})
}

// Recommend handles POST /api/v1/recommendations.
func (s *Server) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if !decodeAndValidate(w, r, &req, func() { req.UserQuery = strings.TrimSpace(req.UserQuery) }) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.recommend.Recommend(ctx, req.UserQuery)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, recommendToDTO(res))
}

// ResearchQuestions handles POST /api/v1/research/questions.
func (s *Server) ResearchQuestions(w http.ResponseWriter, r *http.Request) {
	var req QuestionsRequest
	if !decodeAndValidate(w, r, &req, func() { req.UserQuery = strings.TrimSpace(req.UserQuery) }) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	qs, err := s.recommend.Questions(ctx, req.UserQuery)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, questionsToDTO(qs))
}

// ResearchRecommendations handles POST /api/v1/research/recommendations.
func (s *Server) ResearchRecommendations(w http.ResponseWriter, r *http.Request) {
	var req ResearchRequest
	normalize := func() {
		req.SearchID = strings.TrimSpace(req.SearchID)
		req.UserQuery = strings.TrimSpace(req.UserQuery)
	}
	if !decodeAndValidate(w, r, &req, normalize) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.recommend.Research(ctx, req.SearchID, req.UserQuery, answersFromDTO(req.SurveyContents))
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, researchToDTO(res))
}

// GetUsage handles GET /api/v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period := domusage.PeriodMonth
	if p := r.URL.Query().Get("period"); p != "" {
		period = domusage.Period(p)
		if !period.IsValid() {
			writeError(w, http.StatusBadRequest, codeValidationFailed,
				fmt.Sprintf("period must be one of day, month, total; got %q", p))
			return
		}
	}

	writeJSON(w, http.StatusOK, usageToDTO(s.usage.GetReport(r.Context(), period)))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Version: version.String(),
		Checks:  checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decodeAndValidate reads the JSON body into v, applies normalize and runs
// struct validation. It writes the 400 itself and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any, normalize func()) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if normalize != nil {
		normalize()
	}
	if err := validateRequest(v); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return false
	}
	return true
}

// setUsageHeaders reports the tokens the request consumed. Must run before the body is written.
func setUsageHeaders(w http.ResponseWriter, usage *domain.AIUsage) {
	if usage.EmbeddingUsed() {
		w.Header().Set(metrics.HeaderEmbeddingTokens, strconv.FormatInt(usage.EmbeddingTokens(), 10))
	}
	if usage.LLMUsed() {
		w.Header().Set(metrics.HeaderLLMTokens, strconv.FormatInt(usage.LLMTokens(), 10))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrProviderMisconfigured,
		domain.ErrRateLimited,
		domain.ErrQuotaExceeded,
		domain.ErrEmbeddingProviderError,
		domain.ErrLLMProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// misconfiguredHandler names the failing provider so operators can act on it.
func misconfiguredHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrProviderMisconfigured) {
		return false
	}
	var me *domain.MisconfiguredError
	if errors.As(err, &me) {
		msg = fmt.Sprintf("%s provider is misconfigured: check its API key and settings", me.Provider)
	}
	writeError(w, http.StatusBadRequest, codeProviderMisconfigured, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
