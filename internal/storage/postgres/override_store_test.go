package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-intel-lab/internal/storage"
)

func TestOverrideStore_SetAndGetAll(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOverrideStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "breakout", 1.5))
	require.NoError(t, store.Set(ctx, "fade", 0.4))

	// Set upserts.
	require.NoError(t, store.Set(ctx, "breakout", 0.8))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 0.8, all["breakout"])
	assert.Equal(t, 0.4, all["fade"])
}

func TestOverrideStore_SetEmptySignal(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOverrideStore(pool)
	err := store.Set(context.Background(), "", 1.0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestOverrideStore_Delete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOverrideStore(pool)
	ctx := context.Background()

	err := store.Delete(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Set(ctx, "breakout", 1.2))
	require.NoError(t, store.Delete(ctx, "breakout"))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
