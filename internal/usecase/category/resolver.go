// Package category maps free-text category guesses onto the category tree.
package category

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recodex/internal/domain"
	"github.com/kailas-cloud/recodex/internal/domain/category"
	"github.com/kailas-cloud/recodex/internal/logger"
)

// Source tells how a category was resolved.
type Source string

// Resolution sources.
const (
	SourceNone     Source = "none"
	SourceOverride Source = "override"
	SourceExact    Source = "exact"
	SourceFuzzy    Source = "fuzzy"
)

// Override pins queries containing any keyword to a category, by id or by exact name.
type Override struct {
	Keywords   []string
	Category   string
	CategoryID int64
}

// Config holds resolver tuning.
type Config struct {
	MatchThreshold     float64
	Overrides          []Override
	SafetyLockKeywords []string
}

// Resolution is the outcome of Resolve. Category is zero when Source is SourceNone.
type Resolution struct {
	Category   category.Category
	Source     Source
	Similarity float64
}

// Resolved reports whether a category was found.
func (r Resolution) Resolved() bool { return r.Source != SourceNone }

// Resolver resolves category guesses and expands them to descendant sets.
type Resolver struct {
	repo   Repository
	cfg    Config
	logger *zap.Logger
}

// NewResolver creates a resolver. Override and lock keywords are matched upper-cased.
func NewResolver(repo Repository, cfg Config, logger *zap.Logger) *Resolver {
	overrides := make([]Override, len(cfg.Overrides))
	for i, o := range cfg.Overrides {
		o.Keywords = upperAll(o.Keywords)
		overrides[i] = o
	}
	cfg.Overrides = overrides
	cfg.SafetyLockKeywords = upperAll(cfg.SafetyLockKeywords)
	return &Resolver{repo: repo, cfg: cfg, logger: logger}
}

func upperAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Resolve maps a guess to a category. With useOverrides, a keyword override
// matched on the raw query wins before exact and fuzzy matching. Store
// failures are returned; "no match" is not an error.
func (r *Resolver) Resolve(ctx context.Context, guess, rawQuery string, useOverrides bool) (Resolution, error) {
	log := logger.With(ctx, r.logger)

	if useOverrides {
		res, matched, err := r.override(ctx, rawQuery)
		if err != nil {
			return Resolution{}, err
		}
		if matched {
			log.Info("category pinned by keyword override",
				zap.String("category", res.Category.Name),
				zap.Int64("category_id", res.Category.ID),
				zap.Bool("resolved", res.Resolved()),
			)
			return res, nil
		}
	}

	guess = strings.TrimSpace(guess)
	if category.IsUnknownGuess(guess) {
		return Resolution{Source: SourceNone}, nil
	}

	c, err := r.repo.ByExactName(ctx, guess)
	switch {
	case err == nil:
		return Resolution{Category: c, Source: SourceExact, Similarity: 1}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return Resolution{}, fmt.Errorf("resolve category %q: %w", guess, err)
	}

	c, sim, err := r.repo.BestFuzzyMatch(ctx, guess, r.cfg.MatchThreshold)
	switch {
	case err == nil:
		log.Debug("category fuzzy match",
			zap.String("guess", guess),
			zap.String("category", c.Name),
			zap.Float64("similarity", sim),
		)
		return Resolution{Category: c, Source: SourceFuzzy, Similarity: sim}, nil
	case errors.Is(err, domain.ErrNotFound):
		log.Info("category guess not mapped", zap.String("guess", guess), zap.Float64("threshold", r.cfg.MatchThreshold))
		return Resolution{Source: SourceNone}, nil
	default:
		return Resolution{}, fmt.Errorf("resolve category %q: %w", guess, err)
	}
}

// override returns matched=true when a rule fired, even if its target category
// is missing from the store; in that case the resolution stays unresolved so
// the safety lock can engage.
func (r *Resolver) override(ctx context.Context, rawQuery string) (Resolution, bool, error) {
	upper := strings.ToUpper(rawQuery)
	for _, o := range r.cfg.Overrides {
		if !containsAny(upper, o.Keywords) {
			continue
		}

		var (
			c   category.Category
			err error
		)
		if o.CategoryID > 0 {
			c, err = r.repo.ByID(ctx, o.CategoryID)
		} else {
			c, err = r.repo.ByExactName(ctx, o.Category)
		}
		switch {
		case err == nil:
			return Resolution{Category: c, Source: SourceOverride, Similarity: 1}, true, nil
		case errors.Is(err, domain.ErrNotFound):
			logger.With(ctx, r.logger).Warn("override target category missing",
				zap.String("category", o.Category), zap.Int64("category_id", o.CategoryID))
			return Resolution{Source: SourceNone}, true, nil
		default:
			return Resolution{}, false, fmt.Errorf("resolve override: %w", err)
		}
	}
	return Resolution{}, false, nil
}

// Descendants returns id and every active category below it, breadth first.
// A visited set keeps corrupted (cyclic) data from looping.
func (r *Resolver) Descendants(ctx context.Context, id int64) ([]int64, error) {
	ids := []int64{id}
	visited := map[int64]struct{}{id: {}}

	for queue := []int64{id}; len(queue) > 0; {
		parent := queue[0]
		queue = queue[1:]

		children, err := r.repo.Children(ctx, parent)
		if err != nil {
			return nil, fmt.Errorf("descendants of %d: %w", id, err)
		}
		for _, c := range children {
			if _, seen := visited[c.ID]; seen {
				continue
			}
			visited[c.ID] = struct{}{}
			ids = append(ids, c.ID)
			queue = append(queue, c.ID)
		}
	}
	return ids, nil
}

// SafetyLocked reports whether retrieval must be refused: no category was
// resolved but the query names a well-known hardware type.
func (r *Resolver) SafetyLocked(rawQuery, searchText string, res Resolution) bool {
	if res.Resolved() {
		return false
	}
	return containsAny(strings.ToUpper(rawQuery), r.cfg.SafetyLockKeywords) ||
		containsAny(strings.ToUpper(searchText), r.cfg.SafetyLockKeywords)
}

// HintList returns the comma-joined category names for intent prompts.
// A store failure yields an empty hint.
func (r *Resolver) HintList(ctx context.Context) string {
	names, err := r.repo.Names(ctx)
	if err != nil {
		logger.With(ctx, r.logger).Warn("category hint list unavailable", zap.Error(err))
		return ""
	}
	return strings.Join(names, ", ")
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
