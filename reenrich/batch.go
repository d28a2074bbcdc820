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
	"log/slog"

	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/storage"
)

// Enricher produces an enriched document from a parse result.
type Enricher interface {
	Enrich(ctx context.Context, parsed *core.ParsedDocument) (*core.EnrichedDocument, error)
}

// BatchProcessor re-enriches the documents of a batch of source paths.
type BatchProcessor struct {
	documents storage.DocumentRepository
	enricher  Enricher
	logger    *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(documents storage.DocumentRepository, enricher Enricher, logger *slog.Logger) *BatchProcessor {
	return &BatchProcessor{
		documents: documents,
		enricher:  enricher,
		logger:    logger,
	}
}

// Process re-enriches and stores the document of every path in order.
// Paths whose document disappeared since the batch was listed are skipped.
// It returns how many documents were rewritten and skipped; the first
// failure stops the batch.
func (bp *BatchProcessor) Process(ctx context.Context, paths []string) (processed, skipped int, err error) {
	for _, path := range paths {
		doc, err := bp.documents.GetDocumentByPath(ctx, path)
		if errors.Is(err, storage.ErrNotFound) {
			bp.logger.Debug("document removed during re-enrichment", "path", path)
			skipped++
			continue
		}
		if err != nil {
			return processed, skipped, fmt.Errorf("load %s: %w", path, err)
		}

		enriched, err := bp.enricher.Enrich(ctx, &doc.ParsedDocument)
		if err != nil {
			return processed, skipped, fmt.Errorf("enrich %s: %w", path, err)
		}

		if _, err := bp.documents.PutDocument(ctx, enriched); err != nil {
			return processed, skipped, fmt.Errorf("store %s: %w", path, err)
		}
		processed++
	}
	return processed, skipped, nil
}
