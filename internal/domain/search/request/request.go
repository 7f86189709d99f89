package request

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/recodex/internal/domain/search/filter"
	"github.com/kailas-cloud/recodex/internal/domain/search/mode"
)

// Retrieval limits.
const (
	// MaxQueryLength is the maximum allowed search text length in runes.
	MaxQueryLength      = 4096
	DefaultVectorLimit  = 20
	DefaultKeywordLimit = 20
	MaxLimit            = 500
)

// Limits caps each retrieval path.
type Limits struct {
	Vector  int
	Keyword int
}

// Request is a validated retrieval query.
type Request struct {
	searchText string
	keywords   []string
	filters    filter.Filter
	fusion     mode.Mode
	distance   mode.Distance
	limits     Limits
	locked     bool
}

// New validates and normalizes retrieval parameters.
// Defaults: fusion=weighted_sum, distance=l2, limits=20/20. Blank keywords are dropped.
// A locked request is valid but must never reach the store.
func New(
	searchText string,
	keywords []string,
	filters filter.Filter,
	fusion mode.Mode,
	distance mode.Distance,
	limits Limits,
	locked bool,
) (Request, error) {
	searchText = strings.TrimSpace(searchText)
	if searchText == "" {
		return Request{}, fmt.Errorf("search text is required")
	}
	if utf8.RuneCountInString(searchText) > MaxQueryLength {
		return Request{}, fmt.Errorf("search text too long (max %d chars)", MaxQueryLength)
	}
	if fusion == "" {
		fusion = mode.WeightedSum
	}
	if !fusion.IsValid() {
		return Request{}, fmt.Errorf("invalid fusion mode: %q", fusion)
	}
	if distance == "" {
		distance = mode.L2
	}
	if !distance.IsValid() {
		return Request{}, fmt.Errorf("invalid distance: %q", distance)
	}
	limits.Vector = clampLimit(limits.Vector, DefaultVectorLimit)
	limits.Keyword = clampLimit(limits.Keyword, DefaultKeywordLimit)

	kws := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			kws = append(kws, k)
		}
	}

	return Request{
		searchText: searchText,
		keywords:   kws,
		filters:    filters,
		fusion:     fusion,
		distance:   distance,
		limits:     limits,
		locked:     locked,
	}, nil
}

// Truncate cuts text to MaxQueryLength runes, reporting whether it did.
func Truncate(text string) (string, bool) {
	if utf8.RuneCountInString(text) <= MaxQueryLength {
		return text, false
	}
	return string([]rune(text)[:MaxQueryLength]), true
}

func clampLimit(v, def int) int {
	if v <= 0 {
		return def
	}
	if v > MaxLimit {
		return MaxLimit
	}
	return v
}

// SearchText returns the text embedded for the vector path.
func (r *Request) SearchText() string { return r.searchText }

// Keywords returns the non-blank keywords of the lexical path.
func (r *Request) Keywords() []string { return r.keywords }

// KeywordText returns keywords joined by a space, the string compared by trigram similarity.
func (r *Request) KeywordText() string { return strings.Join(r.keywords, " ") }

// Filters returns the hard filter.
func (r *Request) Filters() filter.Filter { return r.filters }

// Fusion returns the fusion mode.
func (r *Request) Fusion() mode.Mode { return r.fusion }

// Distance returns the vector distance operator.
func (r *Request) Distance() mode.Distance { return r.distance }

// Limits returns per-path limits.
func (r *Request) Limits() Limits { return r.limits }

// Locked reports whether the safety lock suppressed retrieval.
func (r *Request) Locked() bool { return r.locked }

// WantsKeywords reports whether the keyword path should run.
func (r *Request) WantsKeywords() bool {
	return r.fusion.UsesKeywords() && len(r.keywords) > 0
}
