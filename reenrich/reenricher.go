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


package reenrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/storage"
)

// ProcessorType names the checkpoint written by a Reenricher.
const ProcessorType = "reenrich"

// ErrNilDependency is returned when a required collaborator is missing.
var ErrNilDependency = errors.New("reenrich: nil dependency")

// Config holds configuration for a re-enrichment run.
type Config struct {
	// BatchSize is the number of documents to process between checkpoints
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// Resume continues after the last checkpointed path instead of starting over
	Resume bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: DefaultBatchSize,
	}
}

// Summary reports the outcome of a run.
type Summary struct {
	Total     int // Paths considered by this run
	Processed int
	Skipped   int
	Resumed   bool // Whether the run started from a checkpoint
	Elapsed   time.Duration
}

// Reenricher re-runs enrichment over every indexed document.
type Reenricher struct {
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer
	processor   *BatchProcessor
	iterator    *PathIterator
	logger      *slog.Logger
}

// NewReenricher creates a new re-enricher.
// progress: where to write progress output (typically os.Stderr)
func NewReenricher(documents storage.DocumentRepository, checkpoints storage.CheckpointRepository, enricher Enricher, config *Config, progress io.Writer, logger *slog.Logger) (*Reenricher, error) {
	if documents == nil || checkpoints == nil || enricher == nil {
		return nil, ErrNilDependency
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reenricher")

	return &Reenricher{
		checkpoints: checkpoints,
		config:      config,
		progress:    progress,
		processor:   NewBatchProcessor(documents, enricher, logger),
		iterator:    NewPathIterator(documents, config.BatchSize),
		logger:      logger,
	}, nil
}

// Run re-enriches the indexed documents in path order, saving a checkpoint
// after each batch. On success the checkpoint position is cleared so the
// next run starts from the beginning.
func (r *Reenricher) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	after := ""
	processedBefore := 0
	if r.config.Resume {
		cp, err := r.checkpoints.LoadCheckpoint(ctx, ProcessorType)
		if err != nil {
			return summary, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if cp != nil && cp.Position != "" {
			after = cp.Position
			processedBefore = cp.Processed
			summary.Resumed = true
			r.logger.Info("resuming from checkpoint", "after", after, "processed", processedBefore)
		}
	}

	pending, err := r.iterator.Pending(ctx, after)
	if err != nil {
		return summary, fmt.Errorf("failed to list documents: %w", err)
	}
	summary.Total = len(pending)
	if summary.Total == 0 {
		fmt.Fprintf(r.progress, "No documents to re-enrich (0 documents)\n")
		return summary, r.saveCheckpoint(ctx, "", processedBefore)
	}

	fmt.Fprintf(r.progress, "Starting re-enrichment of %d documents (batch size: %d)\n",
		summary.Total, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, summary.Total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, pending, func(paths []string) error {
		processed, skipped, err := r.processor.Process(ctx, paths)
		summary.Processed += processed
		summary.Skipped += skipped
		tracker.Increment(processed + skipped)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}

		return r.saveCheckpoint(ctx, paths[len(paths)-1], processedBefore+summary.Processed)
	})
	summary.Elapsed = tracker.Elapsed()
	if err != nil {
		r.logger.Warn("re-enrichment stopped", "processed", summary.Processed, "err", err)
		return summary, err
	}

	tracker.Finish()
	if err := r.saveCheckpoint(ctx, "", processedBefore+summary.Processed); err != nil {
		return summary, err
	}

	fmt.Fprintf(r.progress, "Re-enrichment complete. Processed %d documents in %v\n",
		summary.Processed, summary.Elapsed.Round(time.Millisecond))
	r.logger.Info("re-enrichment complete", "processed", summary.Processed, "skipped", summary.Skipped)
	return summary, nil
}

func (r *Reenricher) saveCheckpoint(ctx context.Context, position string, processed int) error {
	err := r.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: ProcessorType,
		Position:      position,
		Processed:     processed,
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}
