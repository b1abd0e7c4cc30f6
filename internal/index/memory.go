package index

import (
	"context"
	"math"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ragline/ragline/internal/model"
	"github.com/ragline/ragline/internal/repo"
)

// MemoryIndex scans all stored chunk vectors with cosine similarity. Good
// enough for private collections of a few thousand chunks; larger corpora
// should use the qdrant or pgvector index.
type MemoryIndex struct {
	chunks *repo.ChunkRepo
}

func NewMemoryIndex(chunks *repo.ChunkRepo) *MemoryIndex {
	return &MemoryIndex{chunks: chunks}
}

func (m *MemoryIndex) Upsert(ctx context.Context, chunks []model.Chunk, vectors [][]float32) error {
	for i := range chunks {
		if err := m.chunks.Save(ctx, &chunks[i], vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, vector []float32, topN int) ([]model.Candidate, error) {
	chunks, vectors, err := m.chunks.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	type match struct {
		idx   int
		score float32
	}
	matches := make([]match, 0, len(chunks))
	for i := range chunks {
		matches = append(matches, match{idx: i, score: cosineSimilarity(vector, vectors[i])})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return chunks[matches[i].idx].ID < chunks[matches[j].idx].ID
	})
	if topN > len(matches) {
		topN = len(matches)
	}
	result := make([]model.Candidate, 0, topN)
	for _, m := range matches[:topN] {
		chunk := chunks[m.idx]
		logutil.GetLogger(ctx).Debug("similarity match",
			zap.String("chunk_id", chunk.ID), zap.Float32("score", m.score))
		result = append(result, model.Candidate{
			ChunkID:  chunk.ID,
			Text:     chunk.Text,
			Score:    m.score,
			Metadata: chunk.Metadata,
		})
	}
	return result, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
