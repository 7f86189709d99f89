// Package llm decorates the LLM generator with budget, rate limit, timeout and
// a circuit breaker. Every failure it returns is meant to trigger the caller's
// documented fallback.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/recodex/internal/domain"
	"github.com/kailas-cloud/recodex/internal/metrics"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// Options configures the decorator. Zero values disable the matching guard.
type Options struct {
	Provider string
	Model    string
	Timeout  time.Duration

	RateLimit rate.Limit
	Burst     int

	MaxFailures    uint32
	OpenTimeout    time.Duration
	HalfOpenProbes uint32
}

// InstrumentedGenerator wraps domain.Generator.
type InstrumentedGenerator struct {
	inner   domain.Generator
	opts    Options
	budget  BudgetChecker
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[domain.GenerationResult]
	logger  *zap.Logger
}

// NewInstrumentedGenerator builds the decorator chain around inner. budget may be nil.
func NewInstrumentedGenerator(
	inner domain.Generator, opts Options, budget BudgetChecker, logger *zap.Logger,
) *InstrumentedGenerator {
	g := &InstrumentedGenerator{
		inner:  inner,
		opts:   opts,
		budget: budget,
		logger: logger,
	}

	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(opts.RateLimit, burst)
	}

	if opts.MaxFailures > 0 {
		name := "llm:" + opts.Provider
		g.breaker = gobreaker.NewCircuitBreaker[domain.GenerationResult](gobreaker.Settings{
			Name:        name,
			MaxRequests: max(opts.HalfOpenProbes, 1),
			Timeout:     opts.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= opts.MaxFailures
			},
			IsSuccessful: countsAsSuccess,
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.LLMBreakerState.WithLabelValues(name).Set(stateValue(to))
				logger.Warn("LLM circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
		metrics.LLMBreakerState.WithLabelValues(name).Set(0)
	}

	return g
}

// countsAsSuccess keeps non-transient errors from tripping the breaker:
// a bad key or a cancelled caller says nothing about provider health.
func countsAsSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrProviderMisconfigured) ||
		errors.Is(err, context.Canceled)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// BreakerState returns "closed", "half-open" or "open"; "disabled" without a breaker.
func (g *InstrumentedGenerator) BreakerState() string {
	if g.breaker == nil {
		return "disabled"
	}
	return g.breaker.State().String()
}

// Generate runs the prompt through budget, timeout, rate limit and breaker.
func (g *InstrumentedGenerator) Generate(ctx context.Context, prompt string) (domain.GenerationResult, error) {
	if g.budget != nil {
		if err := g.budget.Check(ctx); err != nil {
			return domain.GenerationResult{}, fmt.Errorf("budget check: %w", err)
		}
	}

	callCtx := ctx
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(callCtx); err != nil {
			return domain.GenerationResult{}, fmt.Errorf("rate limit wait: %v: %w", err, domain.ErrRateLimited)
		}
	}

	start := time.Now()
	result, err := g.execute(callCtx, prompt)
	duration := time.Since(start)

	if err != nil {
		g.logFailure(err, duration)
		return domain.GenerationResult{}, err
	}

	domain.UsageFromContext(ctx).AddLLMTokens(result.TotalTokens)

	if g.budget != nil && result.TotalTokens > 0 {
		g.budget.Record(int64(result.TotalTokens))
		remaining := metrics.BudgetTokensRemaining
		remaining.WithLabelValues(metrics.KindLLM, g.opts.Provider, "daily").Set(float64(g.budget.RemainingDaily()))
		remaining.WithLabelValues(metrics.KindLLM, g.opts.Provider, "monthly").Set(float64(g.budget.RemainingMonthly()))
	}

	g.logger.Debug("LLM request completed",
		zap.String("provider", g.opts.Provider),
		zap.String("model", g.opts.Model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

func (g *InstrumentedGenerator) execute(ctx context.Context, prompt string) (domain.GenerationResult, error) {
	if g.breaker == nil {
		res, err := g.inner.Generate(ctx, prompt)
		if err != nil {
			return domain.GenerationResult{}, fmt.Errorf("generate: %w", err)
		}
		return res, nil
	}

	res, err := g.breaker.Execute(func() (domain.GenerationResult, error) {
		return g.inner.Generate(ctx, prompt)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return domain.GenerationResult{}, fmt.Errorf("circuit %s: %w", g.breaker.State(), domain.ErrLLMProviderError)
	case err != nil:
		return domain.GenerationResult{}, fmt.Errorf("generate: %w", err)
	}
	return res, nil
}

func (g *InstrumentedGenerator) logFailure(err error, d time.Duration) {
	fields := []zap.Field{
		zap.String("provider", g.opts.Provider),
		zap.String("model", g.opts.Model),
		zap.Duration("duration", d),
		zap.Error(err),
	}
	if errors.Is(err, domain.ErrProviderMisconfigured) {
		g.logger.Error("LLM provider misconfigured", fields...)
		return
	}
	g.logger.Warn("LLM request failed", fields...)
}
