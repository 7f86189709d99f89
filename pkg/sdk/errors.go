package recodex

import "github.com/kailas-cloud/recodex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrStoreUnavailable       = domain.ErrStoreUnavailable
	ErrRateLimited            = domain.ErrRateLimited
	ErrQuotaExceeded          = domain.ErrQuotaExceeded
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrLLMProviderError       = domain.ErrLLMProviderError
	ErrProviderMisconfigured  = domain.ErrProviderMisconfigured
)
