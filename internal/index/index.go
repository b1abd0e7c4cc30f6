package index

import (
	"context"
	"fmt"

	"github.com/ragline/ragline/internal/config"
	"github.com/ragline/ragline/internal/model"
	"github.com/ragline/ragline/internal/repo"
)

// Index is the nearest-neighbor service the retrieval pipeline talks to.
// Results come back ordered by descending native similarity score.
type Index interface {
	Upsert(ctx context.Context, chunks []model.Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topN int) ([]model.Candidate, error)
}

func New(cfg config.IndexConfig, chunks *repo.ChunkRepo) (Index, error) {
	switch cfg.Type {
	case "memory":
		if chunks == nil {
			return nil, fmt.Errorf("memory index requires a chunk store")
		}
		return NewMemoryIndex(chunks), nil
	case "qdrant":
		return NewQdrantIndex(cfg.Qdrant), nil
	case "pgvector":
		return NewPgvectorIndex(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported index type: %s", cfg.Type)
	}
}
