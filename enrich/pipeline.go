package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docent/ai"
	"github.com/poiesic/docent/core"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Pipeline runs the enrichment stages in order.
// A Pipeline is safe for concurrent use.
type Pipeline struct {
	generator   ai.Generator
	stages      []Stage
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithRetry sets how provider calls are retried.
// Default is 3 attempts starting at a 1s delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		if baseDelay < 0 {
			return fmt.Errorf("base delay must not be negative, got %v", baseDelay)
		}
		p.maxAttempts = maxAttempts
		p.baseDelay = baseDelay
		return nil
	}
}

// NewPipeline creates a pipeline with the standard stages: metadata,
// keywords, topics, summary.
func NewPipeline(generator ai.Generator, opts ...Option) (*Pipeline, error) {
	if generator == nil {
		return nil, ErrNoGenerator
	}

	p := &Pipeline{
		generator:   generator,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "enrich")
	p.stages = []Stage{
		metadataStage{},
		keywordStage{},
		topicStage{p: p},
		summaryStage{p: p},
	}
	return p, nil
}

// Enrich runs every stage against parsed and returns the completed document.
// On failure no document is returned. Stage failures wrap
// core.ErrEnrichmentFailed; cancellation of ctx is returned as ctx.Err().
func (p *Pipeline) Enrich(ctx context.Context, parsed *core.ParsedDocument) (*core.EnrichedDocument, error) {
	if parsed == nil {
		return nil, core.ErrInvalidDocument
	}
	if !core.HasText(parsed.RawText) {
		return nil, fmt.Errorf("%w: %w", core.ErrEnrichmentFailed, core.ErrEmptyContent)
	}

	logger := p.logger.With("path", parsed.SourcePath)
	start := time.Now()

	doc := core.NewEnrichedDocument(parsed)
	for _, stage := range p.stages {
		next, err := stage.Apply(ctx, doc)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, ctxErr
			}
			logger.Warn("enrichment stage failed", "stage", stage.Name(), "error", err)
			return nil, fmt.Errorf("%w: stage %s: %w", core.ErrEnrichmentFailed, stage.Name(), err)
		}
		next.EnrichmentVersion = doc.EnrichmentVersion + 1
		doc = next
		logger.Debug("enrichment stage complete", "stage", stage.Name(), "version", doc.EnrichmentVersion)
	}

	if err := core.ValidateEnrichedDocument(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEnrichmentFailed, err)
	}

	logger.Info("document enriched",
		"id", doc.ID,
		"keywords", len(doc.Keywords),
		"topics", len(doc.Topics),
		"duration", time.Since(start))
	return &doc, nil
}

func (p *Pipeline) retry(ctx context.Context, op func() error) error {
	return RetryWithBackoff(ctx, op, p.maxAttempts, p.baseDelay)
}
