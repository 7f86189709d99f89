package recodex

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// Budget caps the tokens one provider may spend. Zero means unlimited.
// Reject blocks calls over the cap; otherwise they are only logged.
type Budget struct {
	Daily   int64
	Monthly int64
	Reject  bool
}

type clientConfig struct {
	dsn       string
	addrs     []string
	password  string
	keyPrefix string

	embedder       Embedder
	embeddingModel string
	generator      Generator

	embeddingBudget *Budget
	llmBudget       *Budget

	topK                int
	similarityThreshold float64

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithPostgres sets the product catalog DSN. Required.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.dsn = dsn
	})
}

// WithRedis sets the Redis or Valkey instance for sessions, the embedding
// cache and budgets. Required.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix namespaces every key the client writes. Default: "recodex:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithEmbedder sets the text embedding provider. model scopes cache entries
// so vectors of different models never mix.
func WithEmbedder(e Embedder, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.embeddingModel = model
	})
}

// WithGenerator sets the LLM used for intents, questions and explanations.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithEmbeddingBudget caps embedding token spend.
func WithEmbeddingBudget(b Budget) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingBudget = &b
	})
}

// WithLLMBudget caps LLM token spend.
func WithLLMBudget(b Budget) Option {
	return optionFunc(func(c *clientConfig) {
		c.llmBudget = &b
	})
}

// WithTopK sets how many products a single-shot recommendation returns. Default: 5.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithSimilarityThreshold sets the minimum research similarity. Default: 0.60.
func WithSimilarityThreshold(t float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.similarityThreshold = t
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
