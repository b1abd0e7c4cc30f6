package repo_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/model"
	"github.com/ragline/ragline/internal/repo"
)

func openTestDB(t *testing.T) *repo.EmbeddingCacheRepo {
	t.Helper()
	db, err := repo.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repo.NewEmbeddingCacheRepo(db)
}

func entry(key string, size int64, ctime int64) *model.EmbeddingCacheEntry {
	return &model.EmbeddingCacheEntry{
		CacheKey:  key,
		ModelName: "m",
		Embedding: []float32{1, 2, 3},
		ByteSize:  size,
		Ctime:     ctime,
	}
}

func TestEmbeddingCacheRepoSaveGet(t *testing.T) {
	ctx := context.Background()
	r := openTestDB(t)

	_, ok, err := r.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, r.Save(ctx, entry("k1", 12, 100)))
	vec, ok, err := r.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{1, 2, 3}, vec)

	// Saving the same key again replaces, not duplicates.
	e := entry("k1", 12, 200)
	e.Embedding = []float32{9, 9, 9}
	require.NoError(t, r.Save(ctx, e))
	vec, _, err = r.Get(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, []float32{9, 9, 9}, vec)
	count, err := r.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestEmbeddingCacheRepoTotals(t *testing.T) {
	ctx := context.Background()
	r := openTestDB(t)

	total, err := r.TotalBytes(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, total)

	require.NoError(t, r.Save(ctx, entry("k1", 10, 100)))
	require.NoError(t, r.Save(ctx, entry("k2", 30, 200)))
	total, err = r.TotalBytes(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 40, total)
}

func TestEmbeddingCacheRepoEvictOldest(t *testing.T) {
	ctx := context.Background()
	r := openTestDB(t)

	require.NoError(t, r.Save(ctx, entry("oldest", 10, 100)))
	require.NoError(t, r.Save(ctx, entry("middle", 10, 200)))
	require.NoError(t, r.Save(ctx, entry("newest", 10, 300)))

	keys, freed, err := r.EvictOldest(ctx, 15)
	require.NoError(t, err)
	require.Equal(t, []string{"oldest", "middle"}, keys)
	require.EqualValues(t, 20, freed)

	_, ok, err := r.Get(ctx, "newest")
	require.NoError(t, err)
	require.True(t, ok)
	count, err := r.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestEmbeddingCacheRepoDeleteBefore(t *testing.T) {
	ctx := context.Background()
	r := openTestDB(t)

	require.NoError(t, r.Save(ctx, entry("stale", 10, 100)))
	require.NoError(t, r.Save(ctx, entry("fresh", 10, 500)))

	removed, err := r.DeleteBefore(ctx, 200)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, ok, err := r.Get(ctx, "stale")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = r.Get(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, ok)
}
