package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/embedcache"
	"github.com/ragline/ragline/internal/model"
	appErr "github.com/ragline/ragline/internal/pkg/errors"
	"github.com/ragline/ragline/internal/repo"
)

type recordingIndex struct {
	stubIndex
	upserted []model.Chunk
	vectors  [][]float32
}

func (r *recordingIndex) Upsert(ctx context.Context, chunks []model.Chunk, vectors [][]float32) error {
	r.upserted = append(r.upserted, chunks...)
	r.vectors = append(r.vectors, vectors...)
	return nil
}

func newTestIngestService(t *testing.T, emb *stubEmbedder, idx *recordingIndex) *IngestService {
	t.Helper()
	ctx := context.Background()
	db, err := repo.Open(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	cache := embedcache.New(ctx, repo.NewEmbeddingCacheRepo(db), embedcache.Options{})
	return NewIngestService(embedcache.NewBatcher(emb, cache, 10), idx)
}

func TestIngestChunks(t *testing.T) {
	idx := &recordingIndex{}
	svc := newTestIngestService(t, &stubEmbedder{}, idx)

	result, err := svc.IngestChunks(context.Background(), []model.Chunk{
		{ID: "c1", Text: "first chunk"},
		{Text: "  second chunk, no id  "},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Ingested)
	require.Equal(t, 0, result.Failed)
	require.Len(t, idx.upserted, 2)
	require.Equal(t, "c1", idx.upserted[0].ID)
	require.NotEmpty(t, idx.upserted[1].ID, "missing ids are generated")
	require.Equal(t, "second chunk, no id", idx.upserted[1].Text)
	require.NotZero(t, idx.upserted[0].Mtime)
}

func TestIngestRejectsEmptyText(t *testing.T) {
	svc := newTestIngestService(t, &stubEmbedder{}, &recordingIndex{})
	_, err := svc.IngestChunks(context.Background(), []model.Chunk{
		{ID: "c1", Text: "fine"},
		{ID: "c2", Text: "   "},
	})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestIngestEmbedderDown(t *testing.T) {
	idx := &recordingIndex{}
	svc := newTestIngestService(t, &stubEmbedder{fail: true}, idx)
	result, err := svc.IngestChunks(context.Background(), []model.Chunk{{ID: "c1", Text: "text"}})
	require.NoError(t, err)
	require.Equal(t, 0, result.Ingested)
	require.Equal(t, 1, result.Failed)
	require.Empty(t, idx.upserted)
}
