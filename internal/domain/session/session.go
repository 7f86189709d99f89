// Package session holds the short-lived state of the two-step research flow.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/recodex/internal/domain/intent"
)

// IDPrefix marks research search ids.
const IDPrefix = "sr-"

// Session links a generated question set to a search id.
type Session struct {
	ID        string            `json:"search_id"`
	Query     string            `json:"user_query"`
	Questions []intent.Question `json:"questions"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewSearchID returns "sr-" followed by 8 random hex characters.
func NewSearchID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return IDPrefix + hex[:8]
}

// QuestionText looks up a cached question by id.
func (s Session) QuestionText(id int) (string, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q.Text, q.Text != ""
		}
	}
	return "", false
}

// Backfill fills blank question texts from the session, then from the numbered placeholder.
func Backfill(answers []intent.SurveyAnswer, s *Session) []intent.SurveyAnswer {
	out := make([]intent.SurveyAnswer, len(answers))
	for i, a := range answers {
		if strings.TrimSpace(a.Question) == "" {
			a.Question = intent.PlaceholderQuestion(a.QuestionID)
			if s != nil {
				if text, ok := s.QuestionText(a.QuestionID); ok {
					a.Question = text
				}
			}
		}
		out[i] = a
	}
	return out
}
