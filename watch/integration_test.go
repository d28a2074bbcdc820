package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/docent/ai/mock"
	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/enrich"
	"github.com/poiesic/docent/ingestion"
	"github.com/poiesic/docent/parser"
	"github.com/poiesic/docent/storage"
	"github.com/poiesic/docent/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liveEnv struct {
	service   *Service
	documents storage.DocumentRepository
	generator *mock.MockGenerator
	results   chan ingestion.Result
	root      string
}

// startLiveService runs a Service over a real pipeline and in-memory store.
// setup runs after the pipeline exists but before the watcher starts.
func startLiveService(t *testing.T, setup func(root string, p *ingestion.Pipeline)) *liveEnv {
	t.Helper()

	docRepo, historyRepo, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		historyRepo.Close()
		docRepo.Close()
		backend.Close()
	})

	registry, err := parser.NewDefaultRegistry()
	require.NoError(t, err)
	gen := mock.NewMockGenerator()
	enricher, err := enrich.NewPipeline(gen, enrich.WithRetry(1, 0))
	require.NoError(t, err)
	pipeline, err := ingestion.NewPipeline(docRepo, registry, enricher)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	root := t.TempDir()
	if setup != nil {
		setup(root, pipeline)
	}

	results := make(chan ingestion.Result, 100)
	s, err := NewService(root, pipeline,
		WithDebounce(50*time.Millisecond),
		WithRetries(0, 0),
		WithOnResult(func(r ingestion.Result) { results <- r }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	select {
	case <-s.Ready():
	case err := <-done:
		t.Fatalf("service exited early: %v", err)
	case <-time.After(waitFor):
		t.Fatal("service not ready")
	}

	return &liveEnv{service: s, documents: docRepo, generator: gen, results: results, root: root}
}

func (e *liveEnv) waitResult(t *testing.T, path string) ingestion.Result {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case r := <-e.results:
			if r.Path == path {
				return r
			}
		case <-deadline:
			t.Fatalf("no result for %s", path)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRun_IndexesNewFiles(t *testing.T) {
	env := startLiveService(t, nil)
	path := filepath.Join(env.root, "q1.txt")

	writeFile(t, path, "Q1 revenue grew 12%.")
	result := env.waitResult(t, path)
	require.Equal(t, ingestion.OutcomeIndexed, result.Outcome, "err: %v", result.Err)
	assert.Equal(t, StateIndexed, env.service.State(path))

	hits, err := env.documents.Search(context.Background(), "revenue", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestRun_UnchangedContentMakesNoProviderCalls(t *testing.T) {
	env := startLiveService(t, nil)
	path := filepath.Join(env.root, "notes.md")

	writeFile(t, path, "Budget review notes.")
	require.Equal(t, ingestion.OutcomeIndexed, env.waitResult(t, path).Outcome)
	calls := env.generator.CallCount()

	writeFile(t, path, "Budget review notes.")
	assert.Equal(t, ingestion.OutcomeUnchanged, env.waitResult(t, path).Outcome)
	assert.Equal(t, calls, env.generator.CallCount())
}

func TestRun_DeleteRemovesDocument(t *testing.T) {
	env := startLiveService(t, nil)
	path := filepath.Join(env.root, "temp.txt")

	writeFile(t, path, "Temporary content.")
	require.Equal(t, ingestion.OutcomeIndexed, env.waitResult(t, path).Outcome)

	require.NoError(t, os.Remove(path))
	assert.Equal(t, ingestion.OutcomeRemoved, env.waitResult(t, path).Outcome)
	assert.Equal(t, StateRemoved, env.service.State(path))

	_, err := env.documents.GetDocumentByPath(context.Background(), path)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRun_RenameIndexesNewPath(t *testing.T) {
	env := startLiveService(t, nil)
	oldPath := filepath.Join(env.root, "draft.txt")
	newPath := filepath.Join(env.root, "final.txt")

	writeFile(t, oldPath, "Release plan.")
	require.Equal(t, ingestion.OutcomeIndexed, env.waitResult(t, oldPath).Outcome)

	require.NoError(t, os.Rename(oldPath, newPath))
	require.Eventually(t, func() bool {
		return env.service.State(oldPath) == StateRemoved && env.service.State(newPath) == StateIndexed
	}, waitFor, tick)

	paths, err := env.documents.ListSourcePaths(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{newPath}, paths)
}

func TestRun_WatchesNewDirectories(t *testing.T) {
	env := startLiveService(t, nil)
	dir := filepath.Join(env.root, "reports")
	require.NoError(t, os.Mkdir(dir, 0o755))

	// Give the watcher a moment to register the directory
	require.Eventually(t, func() bool {
		path := filepath.Join(dir, "later.txt")
		writeFile(t, path, "Quarterly figures.")
		return env.service.State(path) != StateUnseen
	}, waitFor, 50*time.Millisecond)

	path := filepath.Join(dir, "later.txt")
	require.Eventually(t, func() bool { return env.service.State(path) == StateIndexed }, waitFor, tick)
}

func TestRun_InitialScanAndReconcile(t *testing.T) {
	var existing, stale string
	env := startLiveService(t, func(root string, p *ingestion.Pipeline) {
		existing = filepath.Join(root, "existing.txt")
		stale = filepath.Join(root, "stale.txt")
		writeFile(t, stale, "Soon gone.")
		_, err := p.IndexFile(context.Background(), stale)
		require.NoError(t, err)
		require.NoError(t, os.Remove(stale))
		writeFile(t, existing, "Present before start.")
	})

	assert.Equal(t, StateRemoved, env.service.State(stale))
	require.Eventually(t, func() bool { return env.service.State(existing) == StateIndexed }, waitFor, tick)

	paths, err := env.documents.ListSourcePaths(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{existing}, paths)
}

func TestRun_IgnoresUnrecognizedFiles(t *testing.T) {
	env := startLiveService(t, nil)
	ignored := filepath.Join(env.root, "image.png")
	tracked := filepath.Join(env.root, "after.txt")

	writeFile(t, ignored, "png bytes")
	writeFile(t, tracked, "Tracked content.")
	require.Equal(t, ingestion.OutcomeIndexed, env.waitResult(t, tracked).Outcome)
	assert.Equal(t, StateUnseen, env.service.State(ignored))

	docs, err := env.documents.ListDocuments(context.Background(), storage.DocumentFilter{Format: core.FormatText})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
