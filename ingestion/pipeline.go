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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/parser"
	"github.com/poiesic/docent/storage"
)

// DefaultExtensions are the file extensions admitted when none are configured.
var DefaultExtensions = []string{".txt", ".md", ".csv", ".json", ".pdf", ".docx"}

// Enricher turns a parse result into a complete document.
// *enrich.Pipeline implements it.
type Enricher interface {
	Enrich(ctx context.Context, parsed *core.ParsedDocument) (*core.EnrichedDocument, error)
}

// Outcome describes what processing a path did to the store.
type Outcome string

const (
	OutcomeIndexed   Outcome = "indexed"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeRemoved   Outcome = "removed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeFailed    Outcome = "failed"
)

// Result reports the processing of one path.
type Result struct {
	Path     string
	Outcome  Outcome
	Document *core.EnrichedDocument // Set for indexed and unchanged files
	Err      error                  // Set for failed files
}

// Pipeline orchestrates parsing, enrichment and persistence of source files.
type Pipeline struct {
	documents  storage.DocumentRepository
	registry   *parser.Registry
	enricher   Enricher
	pool       *ants.Pool
	extensions map[string]bool
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of files enriched concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithExtensions restricts admitted files to the given extensions.
// Matching is case-insensitive; a missing leading dot is added.
func WithExtensions(extensions ...string) Option {
	return func(p *Pipeline) error {
		if len(extensions) == 0 {
			return errors.New("at least one extension required")
		}
		p.extensions = makeExtensionSet(extensions)
		return nil
	}
}

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

func makeExtensionSet(extensions []string) map[string]bool {
	set := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	documents storage.DocumentRepository,
	registry *parser.Registry,
	enricher Enricher,
	opts ...Option,
) (*Pipeline, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if enricher == nil {
		return nil, ErrEnricherRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		documents:  documents,
		registry:   registry,
		enricher:   enricher,
		pool:       pool,
		extensions: makeExtensionSet(DefaultExtensions),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Accepts reports whether path has an admitted extension that a registered
// parser can handle.
func (p *Pipeline) Accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return p.extensions[ext] && p.registry.Supports(core.FormatFromExtension(ext))
}

// IndexFile brings the store in line with the file at path.
// Unchanged content is skipped without parsing or enrichment. A file that no
// longer exists is removed from the store. The returned error is non-nil
// only for failures that are not specific to this file, such as a closed
// store or pool; per-file failures are reported in Result.Err.
func (p *Pipeline) IndexFile(ctx context.Context, path string) (Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Result{Path: path, Outcome: OutcomeFailed, Err: err}, nil
	}
	logger := p.logger.With("path", absPath)

	if !p.Accepts(absPath) {
		logger.Debug("file not admitted")
		return Result{Path: absPath, Outcome: OutcomeIgnored, Err: fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, absPath)}, nil
	}

	hash, err := parser.HashFile(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		return p.RemoveFile(ctx, absPath)
	}
	if err != nil {
		logger.Warn("failed to read file", "error", err)
		return Result{Path: absPath, Outcome: OutcomeFailed, Err: &core.ParseError{Path: absPath, Err: err}}, nil
	}

	existing, err := p.documents.GetDocumentByPath(ctx, absPath)
	switch {
	case err == nil && existing.ContentHash == hash:
		logger.Debug("content unchanged, skipping")
		return Result{Path: absPath, Outcome: OutcomeUnchanged, Document: existing}, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return Result{}, err
	}

	type outcome struct {
		doc *core.EnrichedDocument
		err error
	}
	done := make(chan outcome, 1)
	work := context.WithoutCancel(ctx)
	if err := p.pool.Submit(func() {
		doc, err := p.process(work, absPath)
		done <- outcome{doc, err}
	}); err != nil {
		return Result{}, err
	}
	out := <-done

	if out.err != nil {
		if errors.Is(out.err, storage.ErrStorageClosed) {
			return Result{}, out.err
		}
		logger.Warn("failed to index file", "error", out.err)
		if existing != nil && invalidatesDocument(out.err) {
			if _, err := p.documents.DeleteDocumentByPath(work, absPath); err != nil {
				return Result{}, err
			}
			logger.Info("stale document removed", "id", existing.ID)
		}
		return Result{Path: absPath, Outcome: OutcomeFailed, Err: out.err}, nil
	}
	return Result{Path: absPath, Outcome: OutcomeIndexed, Document: out.doc}, nil
}

// invalidatesDocument reports whether a failure means the file itself no
// longer yields a document. Provider failures keep the previous version.
func invalidatesDocument(err error) bool {
	return errors.Is(err, core.ErrParse) || errors.Is(err, core.ErrUnsupportedFormat)
}

func (p *Pipeline) process(ctx context.Context, absPath string) (*core.EnrichedDocument, error) {
	start := time.Now()

	parsed, err := p.registry.Parse(ctx, absPath, "")
	if err != nil {
		return nil, err
	}

	doc, err := p.enricher.Enrich(ctx, parsed)
	if err != nil {
		return nil, err
	}

	stored, err := p.documents.PutDocument(ctx, doc)
	if err != nil {
		return nil, err
	}

	p.logger.Info("document indexed",
		"path", absPath,
		"id", stored.ID,
		"format", stored.Format,
		"duration", time.Since(start))
	return stored, nil
}

// RemoveFile deletes the document indexed for path. Removing a path that was
// never indexed is a no-op reported as OutcomeIgnored.
func (p *Pipeline) RemoveFile(ctx context.Context, path string) (Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Result{Path: path, Outcome: OutcomeFailed, Err: err}, nil
	}

	deleted, err := p.documents.DeleteDocumentByPath(context.WithoutCancel(ctx), absPath)
	if err != nil {
		return Result{}, err
	}
	if !deleted {
		return Result{Path: absPath, Outcome: OutcomeIgnored}, nil
	}
	p.logger.Info("document removed", "path", absPath)
	return Result{Path: absPath, Outcome: OutcomeRemoved}, nil
}

// IngestPaths indexes every admitted file named by paths. Directories are
// walked recursively. Files are processed concurrently; results are returned
// in discovery order.
func (p *Pipeline) IngestPaths(ctx context.Context, paths ...string) ([]Result, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		found, err := p.Scan(ctx, path)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	results := make([]Result, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.pool.Cap())
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := p.IndexFile(gctx, file)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Scan returns the admitted files under root in lexical order.
func (p *Pipeline) Scan(ctx context.Context, root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != absRoot {
				p.logger.Warn("skipping unreadable path", "path", path, "error", err)
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.Type().IsRegular() && p.Accepts(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Reconcile removes stored documents under root whose source file no longer
// exists. It returns the removed paths.
func (p *Pipeline) Reconcile(ctx context.Context, root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	prefix := absRoot + string(filepath.Separator)

	paths, err := p.documents.ListSourcePaths(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, path := range paths {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		result, err := p.RemoveFile(ctx, path)
		if err != nil {
			return removed, err
		}
		if result.Outcome == OutcomeRemoved {
			removed = append(removed, path)
		}
	}
	if len(removed) > 0 {
		p.logger.Info("removed documents for deleted files", "root", absRoot, "count", len(removed))
	}
	slices.Sort(removed)
	return removed, nil
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
