// Package search runs the two retrieval paths and fuses their results.
package search

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/recodex/internal/domain"
	"github.com/kailas-cloud/recodex/internal/domain/search/candidate"
	"github.com/kailas-cloud/recodex/internal/domain/search/request"
	"github.com/kailas-cloud/recodex/internal/logger"
	"github.com/kailas-cloud/recodex/internal/metrics"
)

// Paths holds the independently scored output of both retrieval paths.
type Paths struct {
	Vector  []candidate.Candidate
	Keyword []candidate.Candidate
	// VectorDegraded is set when embedding failed and only the keyword path ran.
	VectorDegraded bool
}

// Empty reports whether neither path produced a candidate.
func (p Paths) Empty() bool {
	return len(p.Vector) == 0 && len(p.Keyword) == 0
}

// Retriever queries the vector and keyword paths concurrently.
type Retriever struct {
	repo         Repository
	embed        Embedder
	keywordFloor float64
	logger       *zap.Logger
}

// NewRetriever creates a retriever. keywordFloor is the minimum trigram similarity.
func NewRetriever(repo Repository, embed Embedder, keywordFloor float64, logger *zap.Logger) *Retriever {
	return &Retriever{repo: repo, embed: embed, keywordFloor: keywordFloor, logger: logger}
}

// Retrieve runs both paths as a fork-join. A locked request never reaches the store.
// Embedding failures degrade to keyword-only retrieval, except provider
// misconfiguration, which is returned along with any store error.
func (r *Retriever) Retrieve(ctx context.Context, req *request.Request) (Paths, error) {
	if req.Locked() {
		return Paths{}, nil
	}

	var paths Paths
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vec, degraded, err := r.vectorPath(gctx, req)
		if err != nil {
			return err
		}
		paths.Vector, paths.VectorDegraded = vec, degraded
		return nil
	})

	if req.WantsKeywords() {
		g.Go(func() error {
			kw, err := r.repo.KeywordSearch(gctx, req.KeywordText(), r.keywordFloor, req.Filters(), req.Limits().Keyword)
			if err != nil {
				return fmt.Errorf("keyword path: %w", err)
			}
			paths.Keyword = kw
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Paths{}, err
	}

	metrics.RetrievalCandidates.WithLabelValues("vector").Observe(float64(len(paths.Vector)))
	if req.WantsKeywords() {
		metrics.RetrievalCandidates.WithLabelValues("keyword").Observe(float64(len(paths.Keyword)))
	}
	return paths, nil
}

func (r *Retriever) vectorPath(ctx context.Context, req *request.Request) ([]candidate.Candidate, bool, error) {
	emb, err := r.embed.Embed(ctx, req.SearchText())
	if err != nil {
		if errors.Is(err, domain.ErrProviderMisconfigured) {
			return nil, false, fmt.Errorf("vectorize query: %w", err)
		}
		metrics.RecommendFallbacksTotal.WithLabelValues("embedding").Inc()
		logger.With(ctx, r.logger).Warn("embedding failed, continuing with keyword path only",
			zap.Error(err),
		)
		return nil, true, nil
	}

	hits, err := r.repo.VectorSearch(ctx, emb.Embedding, req.Distance(), req.Filters(), req.Limits().Vector)
	if err != nil {
		return nil, false, fmt.Errorf("vector path: %w", err)
	}

	out := make([]candidate.Candidate, len(hits))
	for i, h := range hits {
		out[i] = candidate.FromVector(h.Product, h.Similarity())
	}
	return out, false, nil
}
