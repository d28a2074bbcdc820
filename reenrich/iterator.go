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

	"github.com/poiesic/docent/storage"
)

const (
	// DefaultBatchSize is the default number of documents per batch
	DefaultBatchSize = 20
)

// PathIterator walks the indexed source paths in batches.
type PathIterator struct {
	repo      storage.DocumentRepository
	batchSize int
}

// NewPathIterator creates an iterator. A batchSize <= 0 uses DefaultBatchSize.
func NewPathIterator(repo storage.DocumentRepository, batchSize int) *PathIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &PathIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// Pending returns the indexed paths that sort after the given position, in
// lexical order. An empty position returns every path.
func (it *PathIterator) Pending(ctx context.Context, after string) ([]string, error) {
	paths, err := it.repo.ListSourcePaths(ctx)
	if err != nil {
		return nil, err
	}
	if after == "" {
		return paths, nil
	}

	pending := paths[:0]
	for _, p := range paths {
		if p > after {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

// ForEach calls fn with consecutive batches of paths.
// Iteration stops at the first error from fn or when ctx is done.
func (it *PathIterator) ForEach(ctx context.Context, paths []string, fn func([]string) error) error {
	for i := 0; i < len(paths); i += it.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(i+it.batchSize, len(paths))
		if err := fn(paths[i:end]); err != nil {
			return err
		}
	}

	return nil
}
