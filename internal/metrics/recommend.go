package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recommendation pipeline metrics.
var (
	RecommendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommend_requests_total",
			Help:      "Recommendation runs by flow and outcome",
		},
		[]string{"flow", "outcome"}, // outcome: "ok" / "empty" / "error"
	)

	RecommendFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommend_fallbacks_total",
			Help:      "Degraded pipeline stages",
		},
		[]string{"stage"}, // "intent" / "embedding" / "rerank" / "questions"
	)

	SafetyLockTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "safety_lock_total",
			Help:      "Requests that triggered the uncategorized safety lock",
		},
		[]string{"flow"},
	)

	RetrievalCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_candidates",
			Help:      "Candidates returned per retrieval path",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		},
		[]string{"path"}, // "vector" / "keyword"
	)

	RecommendResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommend_results",
			Help:      "Products returned per recommendation",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
		[]string{"flow"},
	)
)
