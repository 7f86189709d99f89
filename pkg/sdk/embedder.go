package recodex

import "context"

// Embedder converts text to a vector embedding.
// Without one, retrieval runs on the keyword path only.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Generator completes a prompt with an LLM. The prompt asks for JSON; the
// text may still carry code fences or prose around it.
// Without one, intents, questions and explanations use their fallbacks.
type Generator interface {
	Generate(ctx context.Context, prompt string) (GenerationResult, error)
}

// GenerationResult carries the generated text and token counts.
type GenerationResult struct {
	Text         string
	PromptTokens int
	TotalTokens  int
}
