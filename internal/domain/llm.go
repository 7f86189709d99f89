package domain

import "context"

// Generator is the LLM capability: prompt in, free-form text out.
// Callers must not assume the text is clean JSON even when they asked for it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (GenerationResult, error)
}

// GenerationResult carries generated text and token usage through the decorator chain.
type GenerationResult struct {
	Text         string
	PromptTokens int
	TotalTokens  int
}
