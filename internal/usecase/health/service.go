package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the catalog store is down; no recommendation can be served.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// breakerOpen is the gobreaker name of the open state.
const breakerOpen = "open"

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db        Pinger
	cache     Pinger
	embedding EmbeddingChecker
	llm       BreakerReporter
}

// New creates a Service. cache, embedding and llm can be nil.
func New(db, cache Pinger, embedding EmbeddingChecker, llm BreakerReporter) *Service {
	return &Service{db: db, cache: cache, embedding: embedding, llm: llm}
}

// Check runs health checks against all components. The LLM is reported
// unhealthy only while its circuit breaker is open.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks["database"] = result(s.db.Ping(ctx))

	if s.cache != nil {
		checks["cache"] = result(s.cache.Ping(ctx))
	}

	if s.embedding != nil {
		checks["embedding"] = result(s.embedding.HealthCheck(ctx))
	}

	if s.llm != nil {
		if s.llm.BreakerState() == breakerOpen {
			checks["llm"] = CheckError
		} else {
			checks["llm"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks["database"] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
