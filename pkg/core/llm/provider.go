package llm

import (
	"context"
)

// Provider is the interface for all LLM providers. Callers treat a provider
// as opaque text-in/text-out: system prompt, user prompt, response.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
}
