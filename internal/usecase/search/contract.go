package search

import (
	"context"

	"github.com/kailas-cloud/recodex/internal/domain"
	"github.com/kailas-cloud/recodex/internal/domain/search/candidate"
	"github.com/kailas-cloud/recodex/internal/domain/search/filter"
	"github.com/kailas-cloud/recodex/internal/domain/search/mode"
)

// Repository defines the product store contract for retrieval.
type Repository interface {
	VectorSearch(
		ctx context.Context, vec []float32, d mode.Distance, f filter.Filter, limit int,
	) ([]candidate.VectorHit, error)

	KeywordSearch(
		ctx context.Context, text string, floor float64, f filter.Filter, limit int,
	) ([]candidate.Candidate, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
