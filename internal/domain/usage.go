package domain

import (
	"context"
	"sync/atomic"
)

type aiUsageKey struct{}

// AIUsage collects token usage of one HTTP request across providers.
// The handler puts a pointer into the context before calling the service;
// decorators write after each provider call; the handler reads it for response headers.
// Writes may come from the retriever's goroutines, so counters are atomic.
type AIUsage struct {
	embeddingTokens atomic.Int64
	llmTokens       atomic.Int64
	embeddingUsed   atomic.Bool
	llmCalls        atomic.Int64
}

// NewContextWithUsage returns a context with an attached usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *AIUsage) {
	u := &AIUsage{}
	return context.WithValue(ctx, aiUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *AIUsage {
	u, _ := ctx.Value(aiUsageKey{}).(*AIUsage)
	return u
}

// AddEmbeddingTokens records embedding tokens. A cache hit records 0 but still marks usage.
func (u *AIUsage) AddEmbeddingTokens(n int) {
	if u == nil {
		return
	}
	u.embeddingTokens.Add(int64(n))
	u.embeddingUsed.Store(true)
}

// AddLLMTokens records tokens of one LLM call.
func (u *AIUsage) AddLLMTokens(n int) {
	if u == nil {
		return
	}
	u.llmTokens.Add(int64(n))
	u.llmCalls.Add(1)
}

// EmbeddingTokens returns the embedding tokens recorded so far.
func (u *AIUsage) EmbeddingTokens() int64 {
	if u == nil {
		return 0
	}
	return u.embeddingTokens.Load()
}

// LLMTokens returns the LLM tokens recorded so far.
func (u *AIUsage) LLMTokens() int64 {
	if u == nil {
		return 0
	}
	return u.llmTokens.Load()
}

// EmbeddingUsed reports whether the embedder was called, even on a cache hit.
func (u *AIUsage) EmbeddingUsed() bool {
	return u != nil && u.embeddingUsed.Load()
}

// LLMUsed reports whether at least one LLM call completed.
func (u *AIUsage) LLMUsed() bool {
	return u != nil && u.llmCalls.Load() > 0
}
