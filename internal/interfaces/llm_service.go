package interfaces

import (
	"context"
)

// LLMProvider identifies which backend serves completions
type LLMProvider string

const (
	// LLMProviderClaude uses the Anthropic Messages API
	LLMProviderClaude LLMProvider = "claude"

	// LLMProviderGemini uses the Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
)

// LLMService defines the interface for language model completions used by
// the intent classifier, the workflow planner, and the drafting and analysis
// tools. Implementations wrap a single provider. Callers must survive any
// error it returns: every LLM consumer in the system carries a deterministic
// fallback, so a provider outage degrades quality, never availability.
type LLMService interface {
	// Complete generates a single text completion.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - systemPrompt: System instruction framing the reply (may be empty)
	//   - userPrompt: The prompt text
	//   - maxTokens: Upper bound on generated tokens
	//   - temperature: Sampling temperature, 0.0 to 1.0
	//
	// Returns:
	//   - string: Generated text
	//   - error: Error if the provider call fails
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)

	// HealthCheck verifies the provider is reachable and authenticated
	HealthCheck(ctx context.Context) error

	// GetProvider returns which backend this service wraps
	GetProvider() LLMProvider

	// Close releases provider resources
	Close() error
}
