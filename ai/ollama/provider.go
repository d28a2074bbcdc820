// Package ollama provides an ai.AIProvider backed by Ollama's native API.
package ollama

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/docent/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Provider implements ai.AIProvider against an Ollama server.
type Provider struct {
	generator ai.Generator
	logger    *slog.Logger
}

// NewProvider creates a provider for the configured Ollama host and model.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	config.Backend = ai.BackendOllama
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := ollama.New(
		ollama.WithServerURL(config.Host),
		ollama.WithModel(config.Model),
	)
	if err != nil {
		return nil, err
	}

	gen := &Generator{
		client:  client,
		timeout: config.Timeout,
		logger:  config.GetLogger().With("component", "ollama-generator"),
	}
	return &Provider{
		generator: ai.RateLimited(gen, config.RequestsPerSecond),
		logger:    config.GetLogger().With("component", "ollama-provider"),
	}, nil
}

// Generator returns the text generation service.
func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// Close is a no-op; the HTTP client holds no resources.
func (p *Provider) Close() error {
	p.logger.Debug("closing Ollama provider")
	return nil
}

// Generator implements ai.Generator using Ollama chat completions.
type Generator struct {
	client  llms.Model
	timeout time.Duration
	logger  *slog.Logger
}

// Generate sends prompt as a single user message.
func (g *Generator) Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	callOpts := opts.CallOptions()

	return ai.CallWithTimeout(ctx, g.timeout, func(ctx context.Context) (string, error) {
		response, err := g.client.GenerateContent(ctx, content, callOpts...)
		if err != nil {
			g.logger.Error("failed to generate content", "err", err)
			return "", err
		}
		if len(response.Choices) < 1 {
			return "", nil
		}
		return response.Choices[0].Content, nil
	})
}
