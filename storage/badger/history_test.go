package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/docent/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndGetHistory(t *testing.T) {
	_, history, backend, err := NewMemoryStore()
	require.NoError(t, err)
	defer func() {
		history.Close()
		backend.Close()
	}()
	ctx := context.Background()

	for i := range 5 {
		qa := &core.QA{Question: fmt.Sprint("q", i), Answer: fmt.Sprint("a", i)}
		require.NoError(t, history.AppendHistory(ctx, "s1", qa, 3))
		assert.NotEmpty(t, qa.ID)
		assert.False(t, qa.Timestamp.IsZero())
	}

	entries, err := history.GetHistory(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "q2", entries[0].Question)
	assert.Equal(t, "q4", entries[2].Question)

	limited, err := history.GetHistory(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "q3", limited[0].Question)
}

func TestHistory_SessionsAreIsolated(t *testing.T) {
	_, history, backend, err := NewMemoryStore()
	require.NoError(t, err)
	defer func() {
		history.Close()
		backend.Close()
	}()
	ctx := context.Background()

	require.NoError(t, history.AppendHistory(ctx, "a", &core.QA{Question: "from a"}, 10))
	require.NoError(t, history.AppendHistory(ctx, "a:b", &core.QA{Question: "from a:b"}, 10))

	entries, err := history.GetHistory(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "from a", entries[0].Question)
}

func TestGetSession_UnknownAndPinned(t *testing.T) {
	_, history, backend, err := NewMemoryStore()
	require.NoError(t, err)
	defer func() {
		history.Close()
		backend.Close()
	}()
	ctx := context.Background()

	session, err := history.GetSession(ctx, "new", 30)
	require.NoError(t, err)
	assert.Equal(t, "new", session.ID)
	assert.Empty(t, session.History)
	assert.Empty(t, session.ActiveDocumentID)

	require.NoError(t, history.PinDocument(ctx, "new", "doc-1"))
	session, err = history.GetSession(ctx, "new", 30)
	require.NoError(t, err)
	assert.Equal(t, core.DocumentID("doc-1"), session.ActiveDocumentID)

	require.NoError(t, history.PinDocument(ctx, "new", ""))
	session, err = history.GetSession(ctx, "new", 30)
	require.NoError(t, err)
	assert.Empty(t, session.ActiveDocumentID)
}
