package search

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/recodex/internal/domain/search/candidate"
	"github.com/kailas-cloud/recodex/internal/domain/search/mode"
)

// Fuser merges both retrieval paths into one ranked list.
type Fuser interface {
	Fuse(p Paths) []candidate.Candidate
}

// WeightedSum blends the two paths. Products found by both get
// vector*VectorWeight + keyword*KeywordWeight; single-path products keep
// their own score. Ties break by product code.
type WeightedSum struct {
	VectorWeight  float64
	KeywordWeight float64
}

// Fuse merges the paths. Inputs are not modified.
func (w WeightedSum) Fuse(p Paths) []candidate.Candidate {
	out := make([]candidate.Candidate, 0, len(p.Vector)+len(p.Keyword))
	index := make(map[string]int, len(p.Vector)+len(p.Keyword))

	for _, c := range p.Vector {
		if _, dup := index[c.Code()]; dup {
			continue
		}
		index[c.Code()] = len(out)
		out = append(out, c)
	}

	for _, c := range p.Keyword {
		kw, _ := c.KeywordScore()
		i, seen := index[c.Code()]
		if !seen {
			index[c.Code()] = len(out)
			out = append(out, c)
			continue
		}
		existing := out[i]
		vec, hasVec := existing.VectorScore()
		if !hasVec {
			continue
		}
		if _, merged := existing.KeywordScore(); merged {
			continue
		}
		out[i] = existing.WithKeyword(kw, vec*w.VectorWeight+kw*w.KeywordWeight)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score() != out[j].Score() {
			return out[i].Score() > out[j].Score()
		}
		return out[i].Code() < out[j].Code()
	})
	return out
}

// VectorOnly ranks by vector similarity, breaking ties by review count, then
// review rating, then product code. The keyword path is ignored.
type VectorOnly struct{}

// Fuse ranks the vector path. Inputs are not modified.
func (VectorOnly) Fuse(p Paths) []candidate.Candidate {
	out := make([]candidate.Candidate, 0, len(p.Vector))
	seen := make(map[string]struct{}, len(p.Vector))
	for _, c := range p.Vector {
		if _, dup := seen[c.Code()]; dup {
			continue
		}
		seen[c.Code()] = struct{}{}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Product(), out[j].Product()
		switch {
		case out[i].Score() != out[j].Score():
			return out[i].Score() > out[j].Score()
		case a.ReviewCount != b.ReviewCount:
			return a.ReviewCount > b.ReviewCount
		case a.Rating() != b.Rating():
			return a.Rating() > b.Rating()
		default:
			return a.Code < b.Code
		}
	})
	return out
}

// FuserFor returns the fuser of a fusion mode.
func FuserFor(m mode.Mode, vectorWeight, keywordWeight float64) (Fuser, error) {
	switch m {
	case mode.WeightedSum:
		return WeightedSum{VectorWeight: vectorWeight, KeywordWeight: keywordWeight}, nil
	case mode.VectorOnly:
		return VectorOnly{}, nil
	default:
		return nil, fmt.Errorf("unsupported fusion mode: %q", m)
	}
}

// ThresholdPolicy keeps candidates scoring at least Min, capped at Target.
// When fewer than Target clear the bar, the bar is dropped and the top Target
// are kept anyway. Min 0 disables the filter; Target 0 disables the cap.
type ThresholdPolicy struct {
	Min    float64
	Target int
}

// Apply filters a list already sorted by score descending.
func (t ThresholdPolicy) Apply(ranked []candidate.Candidate) []candidate.Candidate {
	kept := ranked
	if t.Min > 0 {
		kept = make([]candidate.Candidate, 0, len(ranked))
		for _, c := range ranked {
			if c.Score() >= t.Min {
				kept = append(kept, c)
			}
		}
		if t.Target > 0 && len(kept) < t.Target {
			kept = ranked
		}
	}
	if t.Target > 0 && len(kept) > t.Target {
		kept = kept[:t.Target]
	}
	return kept
}
