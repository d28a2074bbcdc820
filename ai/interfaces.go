package ai

import "context"

// GenerateOptions tunes a single generation call.
type GenerateOptions struct {
	// Temperature controls sampling randomness. Zero is deterministic.
	Temperature float64

	// MaxTokens caps the response length. Zero leaves it to the backend.
	MaxTokens int

	// StopSequences end generation when produced.
	StopSequences []string

	// JSON asks the backend to constrain output to a JSON object.
	JSON bool
}

// Generator produces text completions from a prompt.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate returns the model's completion for prompt.
	// Transport and backend failures wrap core.ErrProvider; an exceeded
	// per-call deadline wraps core.ErrProviderTimeout. Cancellation of ctx
	// by the caller is returned as ctx.Err().
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	return f(ctx, prompt, opts)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Generator returns the text generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
