package core

import "context"

// LLMProvider is a text-generation backend used for metadata enrichment.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
