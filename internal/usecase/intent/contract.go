package intent

import (
	"context"

	"github.com/kailas-cloud/recodex/internal/domain"
)

// Generator is the LLM capability.
type Generator interface {
	Generate(ctx context.Context, prompt string) (domain.GenerationResult, error)
}

// Hinter supplies the category names embedded in extraction prompts.
type Hinter interface {
	HintList(ctx context.Context) string
}
