// Package product holds the read-only catalog entities the recommender ranks.
package product

import (
	"strings"
	"unicode/utf8"
)

// Status is the lifecycle status stored by the crawler.
type Status string

// Lifecycle statuses excluded from vector retrieval. Anything else counts as active.
const (
	StatusDiscontinued Status = "단종"
	StatusStopped      Status = "판매중지"
	StatusSoldOut      Status = "품절"
)

// ExcludedStatuses returns the statuses that never reach the vector path.
func ExcludedStatuses() []string {
	return []string{string(StatusDiscontinued), string(StatusStopped), string(StatusSoldOut)}
}

// IsActive reports whether the status is outside the excluded set.
func (s Status) IsActive() bool {
	return s != StatusDiscontinued && s != StatusStopped && s != StatusSoldOut
}

// Spec text placeholders and limits.
const (
	NoSpecInfo        = "정보 없음"
	NoDetailedSpec    = "상세 정보 없음"
	CompactSpecLength = 150
)

// Product is a catalog entry. Code is the stable external identifier and is
// treated as an opaque string everywhere above the repository.
type Product struct {
	ID           int64
	Code         string
	Name         string
	Brand        string
	Price        int64
	CategoryID   int64
	Status       Status
	Spec         map[string]any
	SpecSummary  []string
	RawSpec      string // detail_spec as stored, used for compact rendering
	ReviewCount  int
	ReviewRating *float64
}

// Rating returns the average review rating, 0 when the product has none.
func (p Product) Rating() float64 {
	if p.ReviewRating == nil {
		return 0
	}
	return *p.ReviewRating
}

// PromptSpec renders specs for a single-shot rerank prompt line:
// the summary joined with " | ", else the raw spec cut to 150 runes.
func (p Product) PromptSpec() string {
	if len(p.SpecSummary) > 0 {
		return strings.Join(p.SpecSummary, " | ")
	}
	if p.RawSpec == "" || p.RawSpec == "{}" || p.RawSpec == "null" {
		return NoSpecInfo
	}
	return truncateRunes(p.RawSpec, CompactSpecLength)
}

// SummaryText renders the spec summary joined with " / " for research results.
func (p Product) SummaryText() string {
	if len(p.SpecSummary) == 0 {
		return NoDetailedSpec
	}
	return strings.Join(p.SpecSummary, " / ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// MallInfo is the most recent display metadata scraped for a product.
type MallInfo struct {
	ImageURL string
	PageURL  string
}
