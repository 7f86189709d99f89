package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest signals a request that failed validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrStoreUnavailable signals that the catalog or cache backend could not serve a query.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded signals an exhausted AI token budget.
	ErrQuotaExceeded = errors.New("token quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLLMProviderError signals an LLM provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrProviderMisconfigured signals missing, placeholder or rejected provider credentials.
	// It is the only AI-side error that reaches the caller.
	ErrProviderMisconfigured = errors.New("provider misconfigured")
)

// MisconfiguredError wraps ErrProviderMisconfigured with the provider that failed.
type MisconfiguredError struct {
	Provider string
	Reason   string
}

func (e *MisconfiguredError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrProviderMisconfigured.Error(), e.Provider, e.Reason)
}

func (e *MisconfiguredError) Unwrap() error { return ErrProviderMisconfigured }

// NewMisconfigured creates a provider misconfiguration error.
func NewMisconfigured(provider, reason string) error {
	return &MisconfiguredError{Provider: provider, Reason: reason}
}
