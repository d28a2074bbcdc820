package badger

import (
	"context"
	"testing"

	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRepository(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	repo := NewCheckpointRepository(backend)
	ctx := context.Background()

	t.Run("missing checkpoint is nil", func(t *testing.T) {
		cp, err := repo.LoadCheckpoint(ctx, "reenrich")
		require.NoError(t, err)
		assert.Nil(t, cp)
	})

	t.Run("save then load", func(t *testing.T) {
		require.NoError(t, repo.SaveCheckpoint(ctx, &core.Checkpoint{
			ProcessorType: "reenrich",
			Position:      "/docs/b.txt",
			Processed:     2,
		}))

		cp, err := repo.LoadCheckpoint(ctx, "reenrich")
		require.NoError(t, err)
		require.NotNil(t, cp)
		assert.Equal(t, "/docs/b.txt", cp.Position)
		assert.Equal(t, 2, cp.Processed)
		assert.False(t, cp.UpdatedAt.IsZero())
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, repo.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: "reenrich"}))
		cp, err := repo.LoadCheckpoint(ctx, "reenrich")
		require.NoError(t, err)
		assert.Empty(t, cp.Position)
	})

	t.Run("processor type required", func(t *testing.T) {
		err := repo.SaveCheckpoint(ctx, &core.Checkpoint{Position: "/docs/a.txt"})
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)

		_, err = repo.LoadCheckpoint(ctx, "")
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})

	t.Run("closed store", func(t *testing.T) {
		closed, err := OpenBackend("", true)
		require.NoError(t, err)
		require.NoError(t, closed.Close())

		_, err = NewCheckpointRepository(closed).LoadCheckpoint(ctx, "reenrich")
		assert.ErrorIs(t, err, storage.ErrStorageClosed)
	})
}
