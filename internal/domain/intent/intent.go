// Package intent holds the structured reading of a user query.
package intent

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/recodex/internal/domain/category"
)

// Intent is what the extractor understood from a query. All fields carry
// defaults, so downstream code never deals with partial LLM output.
type Intent struct {
	Category        string // free-text guess, empty or category.Other when unknown
	SearchText      string
	Keywords        []string
	MinPrice        *int64
	MaxPrice        *int64
	UserNeeds       string
	Priorities      map[string]float64
	AnalysisMessage string
	Degraded        bool // built without the LLM
}

// CategoryKnown reports whether the guess is worth resolving.
func (i Intent) CategoryKnown() bool {
	return !category.IsUnknownGuess(strings.TrimSpace(i.Category))
}

// HasPriceRange reports whether at least one price bound survives normalization.
func (i Intent) HasPriceRange() bool {
	return i.MinPrice != nil || i.MaxPrice != nil
}

// NormalizePrice drops meaningless bounds: a non-positive max or a negative min
// count as absent, and min > max clears both. It reports whether an inverted
// range was discarded so the caller can log it.
func (i *Intent) NormalizePrice() (inverted bool) {
	if i.MaxPrice != nil && *i.MaxPrice <= 0 {
		i.MaxPrice = nil
	}
	if i.MinPrice != nil && *i.MinPrice < 0 {
		i.MinPrice = nil
	}
	if i.MinPrice != nil && i.MaxPrice != nil && *i.MinPrice > *i.MaxPrice {
		i.MinPrice, i.MaxPrice = nil, nil
		return true
	}
	return false
}

// Fallback builds the degraded single-shot intent from the raw query alone.
func Fallback(query string) Intent {
	return Intent{
		Category:   category.Other,
		SearchText: query,
		Keywords:   []string{query},
		UserNeeds:  query,
		Degraded:   true,
	}
}

// SurveyFallback builds the degraded research intent from the query and raw answers.
func SurveyFallback(query string, answers []SurveyAnswer) Intent {
	texts := make([]string, 0, len(answers))
	for _, a := range answers {
		texts = append(texts, a.Answer)
	}
	search := query
	if len(texts) > 0 {
		search = query + " " + strings.Join(texts, " ")
	}
	return Intent{
		SearchText: search,
		Keywords:   append([]string{query}, texts...),
		UserNeeds:  query,
		Degraded:   true,
	}
}

// SurveyAnswer is one answered research question.
type SurveyAnswer struct {
	QuestionID int
	Question   string
	Answer     string
}

// QuestionText returns the question, or a numbered placeholder when it is blank.
func (a SurveyAnswer) QuestionText() string {
	if strings.TrimSpace(a.Question) != "" {
		return a.Question
	}
	return PlaceholderQuestion(a.QuestionID)
}

// Line renders the answer for an analysis prompt.
func (a SurveyAnswer) Line() string {
	return fmt.Sprintf("Q%d: %s -> A: %s", a.QuestionID, a.QuestionText(), a.Answer)
}

// PlaceholderQuestion is shown when neither client nor session knows the question text.
func PlaceholderQuestion(id int) string {
	return fmt.Sprintf("질문 %d", id)
}
