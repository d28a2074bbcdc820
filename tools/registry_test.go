package tools

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/storage"
	"github.com/poiesic/docent/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	registry  *Registry
	documents storage.DocumentRepository
	history   storage.HistoryRepository
	backend   *badger.Backend
}

func setupRegistry(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	docRepo, historyRepo, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		historyRepo.Close()
		docRepo.Close()
		backend.Close()
	})

	reg, err := NewRegistry(docRepo, historyRepo, opts...)
	require.NoError(t, err)
	return &testEnv{registry: reg, documents: docRepo, history: historyRepo, backend: backend}
}

func (e *testEnv) put(t *testing.T, path, text string, topics, keywords []string) *core.EnrichedDocument {
	t.Helper()
	doc := core.NewEnrichedDocument(&core.ParsedDocument{
		SourcePath:         path,
		Format:             core.FormatText,
		RawText:            []core.Segment{{Label: "body", Text: text}},
		ExtractionMetadata: map[string]string{},
		ContentHash:        core.ContentHash([]byte(text)),
	})
	doc.Title = path
	doc.Topics = topics
	doc.Keywords = keywords
	doc.Summary = "summary"
	doc.EnrichmentVersion = core.EnrichmentComplete
	stored, err := e.documents.PutDocument(context.Background(), &doc)
	require.NoError(t, err)
	return stored
}

func (e *testEnv) invoke(t *testing.T, name string, args map[string]any, session *core.Session) core.ToolInvocation {
	t.Helper()
	inv, err := e.registry.Invoke(context.Background(), name, args, session)
	require.NoError(t, err)
	return inv
}

func requireFailure(t *testing.T, inv core.ToolInvocation, code core.ToolFailureCode) {
	t.Helper()
	require.False(t, inv.Result.OK)
	require.NotNil(t, inv.Result.Failure)
	assert.Equal(t, code, inv.Result.Failure.Code, inv.Result.Failure.Message)
}

func TestRegistry_Catalog(t *testing.T) {
	env := setupRegistry(t)
	var names []string
	for _, tool := range env.registry.Tools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.Equal(t, "object", tool.Schema.Type)
	}
	assert.Equal(t, []string{
		ListDocuments, GetTopics, GetDocument, DocumentStats, CompareDocuments, Search, GetUserHistory,
	}, names)
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	env := setupRegistry(t)
	tool, ok := env.registry.Lookup(Search)
	require.True(t, ok)
	assert.Error(t, env.registry.Register(*tool))
}

func TestInvoke_UnknownTool(t *testing.T) {
	env := setupRegistry(t)
	inv := env.invoke(t, "delete_everything", nil, nil)
	requireFailure(t, inv, core.FailureUnknownTool)
	assert.ErrorIs(t, FailureError(inv.Result.Failure), core.ErrUnknownTool)
}

func TestInvoke_GetTopicsUnknownDocument(t *testing.T) {
	env := setupRegistry(t)
	inv := env.invoke(t, GetTopics, map[string]any{"document_id": "never-ingested"}, nil)
	requireFailure(t, inv, core.FailureDocumentNotFound)
	assert.ErrorIs(t, FailureError(inv.Result.Failure), core.ErrDocumentNotFound)
}

func TestInvoke_DocumentToolsUnknownDocument(t *testing.T) {
	env := setupRegistry(t)
	known := env.put(t, "/d/a.txt", "Alpha.", nil, nil)

	for _, name := range []string{GetTopics, GetDocument, DocumentStats} {
		t.Run(name, func(t *testing.T) {
			inv := env.invoke(t, name, map[string]any{"document_id": "missing"}, nil)
			requireFailure(t, inv, core.FailureDocumentNotFound)
		})
	}
	t.Run(CompareDocuments, func(t *testing.T) {
		inv := env.invoke(t, CompareDocuments, map[string]any{"document_id_a": string(known.ID), "document_id_b": "missing"}, nil)
		requireFailure(t, inv, core.FailureDocumentNotFound)
		assert.Contains(t, inv.Result.Failure.Message, "missing")
	})
}

func TestInvoke_GetTopics(t *testing.T) {
	env := setupRegistry(t)
	doc := env.put(t, "/d/a.txt", "Revenue report.", []string{"finance", "growth"}, nil)

	inv := env.invoke(t, GetTopics, map[string]any{"document_id": string(doc.ID)}, nil)
	require.True(t, inv.Result.OK)
	assert.Equal(t, TopicsPayload{DocumentID: doc.ID, Topics: []string{"finance", "growth"}}, inv.Result.Payload)
}

func TestInvoke_ArgumentValidation(t *testing.T) {
	env := setupRegistry(t)
	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"missing required", GetTopics, map[string]any{}},
		{"wrong type", GetTopics, map[string]any{"document_id": 5}},
		{"empty id", GetDocument, map[string]any{"document_id": ""}},
		{"extra property", ListDocuments, map[string]any{"verbose": true}},
		{"limit too small", Search, map[string]any{"query": "x", "limit": 0}},
		{"limit too large", Search, map[string]any{"query": "x", "limit": 500}},
		{"fractional limit", Search, map[string]any{"query": "x", "limit": 2.5}},
		{"blank query", Search, map[string]any{"query": "   "}},
		{"compare missing second", CompareDocuments, map[string]any{"document_id_a": "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := env.invoke(t, tt.tool, tt.args, nil)
			requireFailure(t, inv, core.FailureArgumentInvalid)
		})
	}
}

func TestInvoke_PinnedDocumentFallback(t *testing.T) {
	env := setupRegistry(t)
	doc := env.put(t, "/d/a.txt", "Revenue report.", []string{"finance"}, nil)
	session := &core.Session{ID: "s1", ActiveDocumentID: doc.ID}

	inv := env.invoke(t, GetTopics, nil, session)
	require.True(t, inv.Result.OK, "%+v", inv.Result.Failure)
	assert.Equal(t, string(doc.ID), inv.Arguments["document_id"])

	// An explicit id wins over the pin
	inv = env.invoke(t, GetTopics, map[string]any{"document_id": "other"}, session)
	requireFailure(t, inv, core.FailureDocumentNotFound)
}

func TestInvoke_PinFillsOneCompareArgument(t *testing.T) {
	env := setupRegistry(t)
	a := env.put(t, "/d/a.txt", "Alpha one. Shared line.", nil, nil)
	b := env.put(t, "/d/b.txt", "Bravo two. Shared line.", nil, nil)
	session := &core.Session{ID: "s1", ActiveDocumentID: a.ID}

	inv := env.invoke(t, CompareDocuments, map[string]any{"document_id_b": string(b.ID)}, session)
	require.True(t, inv.Result.OK)
	assert.Equal(t, string(a.ID), inv.Arguments["document_id_a"])

	// Both missing: the pin cannot stand in for two documents
	inv = env.invoke(t, CompareDocuments, map[string]any{}, session)
	requireFailure(t, inv, core.FailureArgumentInvalid)
}

func TestInvoke_ListDocumentsMostRecentFirst(t *testing.T) {
	env := setupRegistry(t)
	first := env.put(t, "/d/first.txt", "First.", nil, nil)
	time.Sleep(2 * time.Millisecond)
	second := env.put(t, "/d/second.txt", "Second.", nil, nil)

	inv := env.invoke(t, ListDocuments, nil, nil)
	require.True(t, inv.Result.OK)
	docs := inv.Result.Payload.([]DocumentSummary)
	require.Len(t, docs, 2)
	assert.Equal(t, second.ID, docs[0].DocumentID)
	assert.Equal(t, first.ID, docs[1].DocumentID)
	assert.Equal(t, core.FormatText, docs[0].Format)
}

func TestInvoke_GetDocument(t *testing.T) {
	env := setupRegistry(t)
	doc := env.put(t, "/d/a.txt", "Full body text.", []string{"t"}, []string{"body"})

	inv := env.invoke(t, GetDocument, map[string]any{"document_id": string(doc.ID)}, nil)
	require.True(t, inv.Result.OK)
	payload := inv.Result.Payload.(DocumentPayload)
	assert.Equal(t, "Full body text.", payload.Content)
	assert.Equal(t, "summary", payload.Summary)
	assert.Equal(t, "/d/a.txt", payload.SourcePath)
}

func TestInvoke_Search(t *testing.T) {
	env := setupRegistry(t)
	doc := env.put(t, "/d/q1.txt", "Q1 revenue grew 12%.", nil, []string{"revenue"})
	env.put(t, "/d/other.txt", "Unrelated notes.", nil, nil)

	inv := env.invoke(t, Search, map[string]any{"query": "revenue", "limit": 5}, nil)
	require.True(t, inv.Result.OK)
	hits := inv.Result.Payload.([]SearchResult)
	require.Len(t, hits, 1)
	assert.Equal(t, doc.ID, hits[0].DocumentID)
	assert.Greater(t, hits[0].Score, 0.0)
	assert.Contains(t, hits[0].Snippet, "revenue")

	inv = env.invoke(t, Search, map[string]any{"query": "nonexistent"}, nil)
	require.True(t, inv.Result.OK, "no matches is not an error")
	assert.Empty(t, inv.Result.Payload.([]SearchResult))

	inv = env.invoke(t, Search, map[string]any{"query": "!!!"}, nil)
	requireFailure(t, inv, core.FailureArgumentInvalid)
}

func TestInvoke_GetUserHistory(t *testing.T) {
	env := setupRegistry(t, WithHistoryWindow(2))
	ctx := context.Background()
	for _, q := range []string{"q1", "q2", "q3"} {
		require.NoError(t, env.history.AppendHistory(ctx, "s1", &core.QA{Question: q, Answer: "a-" + q}, 10))
	}

	inv := env.invoke(t, GetUserHistory, nil, &core.Session{ID: "s1"})
	require.True(t, inv.Result.OK)
	entries := inv.Result.Payload.([]HistoryEntry)
	require.Len(t, entries, 2, "bounded by the window")
	assert.Equal(t, "q2", entries[0].Question)
	assert.Equal(t, "q3", entries[1].Question)

	inv = env.invoke(t, GetUserHistory, map[string]any{"limit": 1}, &core.Session{ID: "s1"})
	require.True(t, inv.Result.OK)
	assert.Len(t, inv.Result.Payload.([]HistoryEntry), 1)

	inv = env.invoke(t, GetUserHistory, nil, nil)
	require.True(t, inv.Result.OK)
	assert.Empty(t, inv.Result.Payload.([]HistoryEntry))
}

func TestInvoke_StoreFailureIsError(t *testing.T) {
	env := setupRegistry(t)
	require.NoError(t, env.backend.Close())

	_, err := env.registry.Invoke(context.Background(), ListDocuments, nil, nil)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestNewRegistry_Validation(t *testing.T) {
	env := setupRegistry(t)
	_, err := NewRegistry(nil, env.history)
	assert.Error(t, err)
	_, err = NewRegistry(env.documents, nil)
	assert.Error(t, err)
	_, err = NewRegistry(env.documents, env.history, WithHistoryWindow(0))
	assert.Error(t, err)
}

func TestRegistry_HasDocument(t *testing.T) {
	env := setupRegistry(t)
	doc := env.put(t, "/d/a.txt", "Alpha text.", nil, nil)

	ok, err := env.registry.HasDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.registry.HasDocument(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, env.backend.Close())
	_, err = env.registry.HasDocument(context.Background(), doc.ID)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
