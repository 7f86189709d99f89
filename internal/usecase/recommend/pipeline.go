package recommend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recodex/internal/domain"
	"github.com/kailas-cloud/recodex/internal/domain/intent"
	"github.com/kailas-cloud/recodex/internal/domain/search/candidate"
	"github.com/kailas-cloud/recodex/internal/domain/search/filter"
	"github.com/kailas-cloud/recodex/internal/domain/search/mode"
	"github.com/kailas-cloud/recodex/internal/domain/search/request"
	"github.com/kailas-cloud/recodex/internal/logger"
	"github.com/kailas-cloud/recodex/internal/metrics"
	"github.com/kailas-cloud/recodex/internal/usecase/category"
	"github.com/kailas-cloud/recodex/internal/usecase/search"
)

// Policy parameterizes the shared pipeline for one flow.
type Policy struct {
	Flow      string
	Fuser     search.Fuser
	Fusion    mode.Mode
	Distance  mode.Distance
	Limits    request.Limits
	Threshold search.ThresholdPolicy
	// UseOverrides pins the category by keyword before exact and fuzzy matching.
	UseOverrides bool
	// SafetyLock refuses retrieval when the query names hardware but no
	// category resolved.
	SafetyLock bool
}

// Input is what the pipeline needs from the caller.
type Input struct {
	Query  string
	Intent intent.Intent
}

// Outcome is the ranked, thresholded candidate list of one run.
type Outcome struct {
	Resolution category.Resolution
	Locked     bool
	Degraded   bool // vector path skipped after an embedding failure
	Candidates []candidate.Candidate
}

// CategoryName returns the resolved category name, else the intent's guess.
func (o Outcome) CategoryName(in intent.Intent) string {
	if o.Resolution.Resolved() {
		return o.Resolution.Category.Name
	}
	return in.Category
}

// Pipeline resolves the category, retrieves, fuses and applies the threshold.
type Pipeline struct {
	resolver  CategoryResolver
	retriever Retriever
	logger    *zap.Logger
}

// NewPipeline creates the shared recommendation pipeline.
func NewPipeline(resolver CategoryResolver, retriever Retriever, logger *zap.Logger) *Pipeline {
	return &Pipeline{resolver: resolver, retriever: retriever, logger: logger}
}

// Run executes one pass. Store failures and provider misconfiguration are
// returned; everything else degrades in place.
func (p *Pipeline) Run(ctx context.Context, pol Policy, in Input) (Outcome, error) {
	log := logger.With(ctx, p.logger, zap.String("flow", pol.Flow))

	res, err := p.resolver.Resolve(ctx, in.Intent.Category, in.Query, pol.UseOverrides)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve category: %w", err)
	}

	var ids []int64
	if res.Resolved() {
		ids, err = p.resolver.Descendants(ctx, res.Category.ID)
		if err != nil {
			return Outcome{}, fmt.Errorf("category descendants: %w", err)
		}
	}

	locked := pol.SafetyLock && p.resolver.SafetyLocked(in.Query, in.Intent.SearchText, res)
	if locked {
		metrics.SafetyLockTotal.WithLabelValues(pol.Flow).Inc()
		log.Info("safety lock engaged, retrieval skipped",
			zap.String("guess", in.Intent.Category),
		)
	}

	f, err := filter.New(ids, in.Intent.MinPrice, in.Intent.MaxPrice)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	searchText := in.Intent.SearchText
	if searchText == "" {
		searchText = in.Query
	}
	if t, cut := request.Truncate(searchText); cut {
		log.Warn("search text truncated",
			zap.Int("max_runes", request.MaxQueryLength),
		)
		searchText = t
	}
	req, err := request.New(searchText, in.Intent.Keywords, f, pol.Fusion, pol.Distance, pol.Limits, locked)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	paths, err := p.retriever.Retrieve(ctx, &req)
	if err != nil {
		return Outcome{}, fmt.Errorf("retrieve: %w", err)
	}

	fused := pol.Fuser.Fuse(paths)
	ranked := pol.Threshold.Apply(fused)

	log.Debug("pipeline finished",
		zap.String("category_source", string(res.Source)),
		zap.Int("category_ids", len(ids)),
		zap.Int("vector", len(paths.Vector)),
		zap.Int("keyword", len(paths.Keyword)),
		zap.Int("fused", len(fused)),
		zap.Int("kept", len(ranked)),
	)

	return Outcome{
		Resolution: res,
		Locked:     locked,
		Degraded:   paths.VectorDegraded,
		Candidates: ranked,
	}, nil
}
