// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package docent wires the document store, language model provider,
// ingestion pipeline, watch service, tools and agent into one system.
package docent

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/docent/agent"
	"github.com/poiesic/docent/ai"
	"github.com/poiesic/docent/ai/ollama"
	"github.com/poiesic/docent/ai/openai"
	"github.com/poiesic/docent/config"
	"github.com/poiesic/docent/enrich"
	"github.com/poiesic/docent/ingestion"
	"github.com/poiesic/docent/parser"
	"github.com/poiesic/docent/reenrich"
	"github.com/poiesic/docent/storage"
	"github.com/poiesic/docent/storage/badger"
	"github.com/poiesic/docent/tools"
	"github.com/poiesic/docent/watch"
)

// System is an opened document store together with its language model
// provider. Components built from it share the store, config and logger.
type System struct {
	config      *config.Config
	backend     *badger.Backend
	documents   storage.DocumentRepository
	history     storage.HistoryRepository
	checkpoints storage.CheckpointRepository
	provider    ai.AIProvider
	ownProvider bool
	logger      *slog.Logger
}

// Option configures a System.
type Option func(*systemOptions)

type systemOptions struct {
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithProvider uses provider instead of building one from the LLM config.
// The caller keeps ownership; Close does not close it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *systemOptions) {
		o.provider = provider
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *systemOptions) {
		o.logger = logger
	}
}

// NewProvider builds the provider selected by cfg.Backend.
func NewProvider(cfg *ai.Config) (ai.AIProvider, error) {
	cfg.Normalize()
	switch cfg.Backend {
	case ai.BackendOpenAI:
		return openai.NewProvider(cfg)
	case ai.BackendOllama:
		return ollama.NewProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}

// Open validates cfg and opens the store and provider.
func Open(cfg *config.Config, opts ...Option) (*System, error) {
	options := &systemOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Open backend
	backend, err := badger.OpenBackendWithLogger(cfg.Storage.Path, cfg.Storage.InMemory, options.logger)
	if err != nil {
		return nil, err
	}

	documents, err := badger.NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	history, err := badger.NewHistoryRepository(backend)
	if err != nil {
		documents.Close()
		backend.Close()
		return nil, err
	}

	provider, ownProvider := options.provider, false
	if provider == nil {
		aiConfig := cfg.AI()
		aiConfig.Logger = options.logger
		provider, err = NewProvider(aiConfig)
		if err != nil {
			history.Close()
			documents.Close()
			backend.Close()
			return nil, err
		}
		ownProvider = true
	}

	return &System{
		config:      cfg,
		backend:     backend,
		documents:   documents,
		history:     history,
		checkpoints: badger.NewCheckpointRepository(backend),
		provider:    provider,
		ownProvider: ownProvider,
		logger:      options.logger,
	}, nil
}

// Close closes the provider if the System created it, then the store.
func (s *System) Close() error {
	if s.ownProvider {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
		}
	}

	if err := s.history.Close(); err != nil {
		s.logger.Error("error closing history repository", "err", err)
		return err
	}
	if err := s.documents.Close(); err != nil {
		s.logger.Error("error closing document repository", "err", err)
		return err
	}

	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Config returns the validated configuration the System was opened with.
func (s *System) Config() *config.Config {
	return s.config
}

// Documents returns the document store.
func (s *System) Documents() storage.DocumentRepository {
	return s.documents
}

// History returns the session history store.
func (s *System) History() storage.HistoryRepository {
	return s.history
}

// NewEnricher creates an enrichment pipeline retrying provider calls as
// configured for ingestion.
func (s *System) NewEnricher(opts ...enrich.Option) (*enrich.Pipeline, error) {
	defaults := []enrich.Option{
		enrich.WithRetry(s.config.Ingestion.MaxRetries, s.config.Ingestion.RetryDelay.Std()),
		enrich.WithLogger(s.logger),
	}
	return enrich.NewPipeline(s.provider.Generator(), append(defaults, opts...)...)
}

// NewIngestionPipeline creates a pipeline over the default parsers. The
// caller must Release it.
func (s *System) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	enricher, err := s.NewEnricher()
	if err != nil {
		return nil, err
	}
	registry, err := parser.NewDefaultRegistry(parser.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	defaults := []ingestion.Option{
		ingestion.WithPoolSize(s.config.Ingestion.Workers),
		ingestion.WithExtensions(s.config.Watch.Extensions...),
		ingestion.WithLogger(s.logger),
	}
	return ingestion.NewPipeline(s.documents, registry, enricher, append(defaults, opts...)...)
}

// NewWatchService creates a watch service for the configured root.
func (s *System) NewWatchService(indexer watch.Indexer, opts ...watch.Option) (*watch.Service, error) {
	defaults := []watch.Option{
		watch.WithDebounce(s.config.Watch.Debounce.Std()),
		watch.WithRetries(s.config.Ingestion.MaxRetries, s.config.Ingestion.RetryDelay.Std()),
		watch.WithLogger(s.logger),
	}
	return watch.NewService(s.config.Watch.Root, indexer, append(defaults, opts...)...)
}

// NewToolRegistry creates a registry holding the canonical query tools.
func (s *System) NewToolRegistry(opts ...tools.Option) (*tools.Registry, error) {
	defaults := []tools.Option{
		tools.WithHistoryWindow(s.config.Agent.HistoryWindow),
		tools.WithLogger(s.logger),
	}
	return tools.NewRegistry(s.documents, s.history, append(defaults, opts...)...)
}

// NewOrchestrator creates an agent over the canonical tools.
func (s *System) NewOrchestrator(opts ...agent.Option) (*agent.Orchestrator, error) {
	registry, err := s.NewToolRegistry()
	if err != nil {
		return nil, err
	}
	defaults := []agent.Option{
		agent.WithMaxToolCalls(s.config.Agent.MaxToolCalls),
		agent.WithHistoryWindow(s.config.Agent.HistoryWindow),
		agent.WithLogger(s.logger),
	}
	return agent.NewOrchestrator(s.provider.Generator(), registry, s.history, append(defaults, opts...)...)
}

// NewReenricher creates a job that re-runs enrichment over the stored
// documents, writing progress to progress.
func (s *System) NewReenricher(cfg *reenrich.Config, progress io.Writer) (*reenrich.Reenricher, error) {
	enricher, err := s.NewEnricher()
	if err != nil {
		return nil, err
	}
	return reenrich.NewReenricher(s.documents, s.checkpoints, enricher, cfg, progress, s.logger)
}
