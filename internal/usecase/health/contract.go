package health

import "context"

// Pinger checks availability of a storage backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// BreakerReporter exposes the LLM circuit breaker state.
type BreakerReporter interface {
	BreakerState() string
}
