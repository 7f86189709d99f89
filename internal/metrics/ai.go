package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "recodex"

// Provider kinds used as the "kind" label.
const (
	KindEmbedding = "embedding"
	KindLLM       = "llm"
)

// AI provider Prometheus metrics. Embedding and LLM calls share the same
// series, split by the "kind" label.
var (
	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "Total number of AI provider requests",
		},
		[]string{"kind", "provider", "model", "status"},
	)

	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_request_duration_seconds",
			Help:      "AI provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind", "provider", "model"},
	)

	AITokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_tokens_total",
			Help:      "Total AI tokens consumed",
		},
		[]string{"kind", "provider", "model", "type"},
	)

	AIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_errors_total",
			Help:      "Total AI provider errors",
		},
		[]string{"kind", "provider", "model", "error_type"},
	)

	BudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_tokens_remaining",
			Help:      "Remaining token budget",
		},
		[]string{"kind", "provider", "period"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups by outcome",
		},
		[]string{"result"}, // "hit" / "miss" / "shared"
	)

	// LLMBreakerState is 0 closed, 1 half-open, 2 open.
	LLMBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "llm_breaker_state",
			Help:      "LLM circuit breaker state",
		},
		[]string{"name"},
	)
)

var registerOnce sync.Once

// Register registers all application metrics. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			AIRequestsTotal,
			AIRequestDuration,
			AITokensTotal,
			AIErrorsTotal,
			BudgetTokensRemaining,
			EmbeddingCacheTotal,
			LLMBreakerState,
			RecommendRequestsTotal,
			RecommendFallbacksTotal,
			SafetyLockTotal,
			RetrievalCandidates,
			RecommendResults,
			httpRequestDuration,
			httpRequestsTotal,
			httpRequestsInFlight,
			httpRequestTokens,
		)
	})
}
