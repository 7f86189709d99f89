package recodex

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	tokens     *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recodex",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "Total SDK operations by type and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "recodex",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recodex",
			Subsystem: "sdk",
			Name:      "ai_tokens_total",
			Help:      "AI tokens consumed by SDK operations, by provider.",
		}, []string{"operation", "provider"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.tokens); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("recodex: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("recodex: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for SDK operations.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	o.observeUsage(op, start, TokenUsage{}, err)
}

// observeUsage also records the AI tokens an operation spent.
func (o *observer) observeUsage(op string, start time.Time, u TokenUsage, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	status := operationStatus(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
		if u.EmbeddingTokens > 0 {
			o.metrics.tokens.WithLabelValues(op, providerEmbedding).Add(float64(u.EmbeddingTokens))
		}
		if u.LLMTokens > 0 {
			o.metrics.tokens.WithLabelValues(op, providerLLM).Add(float64(u.LLMTokens))
		}
	}

	if o.logger == nil {
		return
	}
	switch status {
	case "ok":
		o.logger.Debug("recodex operation completed",
			"op", op,
			"duration", dur,
			"embedding_tokens", u.EmbeddingTokens,
			"llm_tokens", u.LLMTokens,
		)
	case "invalid":
		o.logger.Debug("recodex operation rejected",
			"op", op,
			"error", err,
		)
	default:
		o.logger.Warn("recodex operation failed",
			"op", op,
			"duration", dur,
			"error", err,
		)
	}
}

// operationStatus separates caller mistakes from backend failures.
func operationStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	default:
		return "error"
	}
}
