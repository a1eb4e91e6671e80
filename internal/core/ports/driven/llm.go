package driven

import "context"

// LLMService produces grounded answers from an assembled prompt.
//
// Implementations may include:
//   - Ollama (gemma3, llama3)
//   - OpenAI-compatible inference servers
type LLMService interface {
	// Generate produces a text completion from a prompt. The call is
	// bounded by the context deadline; cancellation aborts cleanly.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}
