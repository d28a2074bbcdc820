package reenrich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/docent/ai/mock"
	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/enrich"
	"github.com/poiesic/docent/storage"
	"github.com/poiesic/docent/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStore struct {
	documents   storage.DocumentRepository
	checkpoints storage.CheckpointRepository
}

func setupStore(t *testing.T) *testStore {
	t.Helper()
	docRepo, historyRepo, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		historyRepo.Close()
		docRepo.Close()
		backend.Close()
	})
	return &testStore{documents: docRepo, checkpoints: badger.NewCheckpointRepository(backend)}
}

// addStale stores n documents whose enrichment differs from what the mock produces.
func (s *testStore) addStale(t *testing.T, n int) []string {
	t.Helper()
	paths := make([]string, n)
	for i := range n {
		paths[i] = fmt.Sprintf("/docs/doc-%02d.txt", i)
		text := fmt.Sprintf("Document number %d talks about budgets and forecasts.", i)
		doc := core.NewEnrichedDocument(&core.ParsedDocument{
			SourcePath:         paths[i],
			Format:             core.FormatText,
			RawText:            []core.Segment{{Label: "body", Text: text}},
			ExtractionMetadata: map[string]string{},
			ContentHash:        core.ContentHash([]byte(text)),
		})
		doc.Title = "stale"
		doc.Topics = []string{"old"}
		doc.Summary = "stale summary"
		doc.EnrichmentVersion = core.EnrichmentComplete
		_, err := s.documents.PutDocument(context.Background(), &doc)
		require.NoError(t, err)
	}
	return paths
}

func newPipeline(t *testing.T) *enrich.Pipeline {
	t.Helper()
	p, err := enrich.NewPipeline(mock.NewMockGenerator())
	require.NoError(t, err)
	return p
}

// failingEnricher fails for one path and delegates everything else.
type failingEnricher struct {
	next     Enricher
	failPath string
	calls    []string
}

func (f *failingEnricher) Enrich(ctx context.Context, parsed *core.ParsedDocument) (*core.EnrichedDocument, error) {
	f.calls = append(f.calls, parsed.SourcePath)
	if parsed.SourcePath == f.failPath {
		return nil, errors.New("model unavailable")
	}
	return f.next.Enrich(ctx, parsed)
}

func TestReenricher_Run(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	paths := store.addStale(t, 7)

	var buf bytes.Buffer
	r, err := NewReenricher(store.documents, store.checkpoints, newPipeline(t),
		&Config{BatchSize: 3, ReportInterval: 3}, &buf, nil)
	require.NoError(t, err)

	summary, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, summary.Total)
	assert.Equal(t, 7, summary.Processed)
	assert.Zero(t, summary.Skipped)
	assert.False(t, summary.Resumed)

	for _, p := range paths {
		doc, err := store.documents.GetDocumentByPath(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, []string{"general"}, doc.Topics)
		assert.Equal(t, mock.DefaultSummaryResponse, doc.Summary)
		assert.Equal(t, core.DocumentIDFor(p, doc.ContentHash), doc.ID, "identity is unchanged")
	}

	// A finished run leaves an empty position behind
	cp, err := store.checkpoints.LoadCheckpoint(ctx, ProcessorType)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Empty(t, cp.Position)
	assert.Equal(t, 7, cp.Processed)

	output := buf.String()
	assert.Contains(t, output, "7/7")
	assert.Contains(t, output, "Re-enrichment complete")
}

func TestReenricher_EmptyStore(t *testing.T) {
	store := setupStore(t)

	var buf bytes.Buffer
	r, err := NewReenricher(store.documents, store.checkpoints, newPipeline(t), nil, &buf, nil)
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Contains(t, buf.String(), "0 documents")
}

func TestReenricher_FailureThenResume(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	paths := store.addStale(t, 6)

	failing := &failingEnricher{next: newPipeline(t), failPath: paths[4]}
	r, err := NewReenricher(store.documents, store.checkpoints, failing, &Config{BatchSize: 2}, nil, nil)
	require.NoError(t, err)

	summary, err := r.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
	assert.Equal(t, 4, summary.Processed)

	// The checkpoint points at the end of the last complete batch
	cp, err := store.checkpoints.LoadCheckpoint(ctx, ProcessorType)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, paths[3], cp.Position)
	assert.Equal(t, 4, cp.Processed)

	// The failed document keeps its previous enrichment
	doc, err := store.documents.GetDocumentByPath(ctx, paths[4])
	require.NoError(t, err)
	assert.Equal(t, "stale summary", doc.Summary)

	recovering := &failingEnricher{next: newPipeline(t)}
	r, err = NewReenricher(store.documents, store.checkpoints, recovering, &Config{BatchSize: 2, Resume: true}, nil, nil)
	require.NoError(t, err)

	summary, err = r.Run(ctx)
	require.NoError(t, err)
	assert.True(t, summary.Resumed)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, paths[4:], recovering.calls)

	cp, err = store.checkpoints.LoadCheckpoint(ctx, ProcessorType)
	require.NoError(t, err)
	assert.Empty(t, cp.Position)
	assert.Equal(t, 6, cp.Processed)
}

func TestReenricher_ResumeWithoutCheckpoint(t *testing.T) {
	store := setupStore(t)
	store.addStale(t, 3)

	counting := &failingEnricher{next: newPipeline(t)}
	r, err := NewReenricher(store.documents, store.checkpoints, counting, &Config{Resume: true}, nil, nil)
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.Resumed)
	assert.Len(t, counting.calls, 3)
}

func TestReenricher_WithoutResumeStartsOver(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	paths := store.addStale(t, 3)

	require.NoError(t, store.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: ProcessorType,
		Position:      paths[1],
		Processed:     2,
	}))

	counting := &failingEnricher{next: newPipeline(t)}
	r, err := NewReenricher(store.documents, store.checkpoints, counting, nil, nil, nil)
	require.NoError(t, err)

	summary, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, paths, counting.calls)
	assert.Equal(t, 3, summary.Processed)
}

func TestReenricher_Cancelled(t *testing.T) {
	store := setupStore(t)
	store.addStale(t, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	counting := &failingEnricher{next: newPipeline(t)}
	r, err := NewReenricher(store.documents, store.checkpoints, counting, nil, nil, nil)
	require.NoError(t, err)

	_, err = r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, counting.calls)
}

func TestNewReenricher_Validation(t *testing.T) {
	store := setupStore(t)

	_, err := NewReenricher(nil, store.checkpoints, newPipeline(t), nil, nil, nil)
	require.ErrorIs(t, err, ErrNilDependency)

	_, err = NewReenricher(store.documents, nil, newPipeline(t), nil, nil, nil)
	require.ErrorIs(t, err, ErrNilDependency)

	_, err = NewReenricher(store.documents, store.checkpoints, nil, nil, nil, nil)
	require.ErrorIs(t, err, ErrNilDependency)
}
