package embedcache

import (
	"context"
	"fmt"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ragline/ragline/internal/ai"
)

// Batcher turns a list of texts into an index-aligned list of vectors,
// consulting the cache first and calling the provider only for misses.
type Batcher struct {
	embedder  ai.IEmbedder
	cache     *Cache
	batchSize int
}

func NewBatcher(embedder ai.IEmbedder, cache *Cache, batchSize int) *Batcher {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Batcher{embedder: embedder, cache: cache, batchSize: batchSize}
}

// PartialError reports texts that could not be embedded, by input index.
// Sibling results are still returned in order, so the caller decides
// whether to substitute placeholders or fail the whole operation.
type PartialError struct {
	Errs map[int]error
}

func (e *PartialError) Error() string {
	indices := make([]int, 0, len(e.Errs))
	for idx := range e.Errs {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return fmt.Sprintf("embedding failed for %d of batch, indices %v", len(e.Errs), indices)
}

func (b *Batcher) ModelName() string {
	if b == nil || b.embedder == nil {
		return ""
	}
	return b.embedder.ModelName()
}

// EmbedAll returns one vector per input text, at the same position. When
// some texts fail the returned error is a *PartialError and the failed
// positions hold nil vectors; everything else is usable.
func (b *Batcher) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if b == nil || b.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	vectors := make([][]float32, len(texts))
	modelName := b.embedder.ModelName()

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if vec, ok := b.cache.Lookup(ctx, text, modelName); ok {
			vectors[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return vectors, nil
	}

	failed := map[int]error{}
	for start := 0; start < len(missTexts); start += b.batchSize {
		end := start + b.batchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		batch := missTexts[start:end]
		embs, err := b.embedBatch(ctx, batch)
		if err != nil {
			// The whole batch failed twice; one bad text must not void
			// its siblings, so fall back to embedding them one by one.
			logutil.GetLogger(ctx).Warn("batch embed failed, falling back to per-item",
				zap.Int("batch_size", len(batch)), zap.Error(err))
			for j, text := range batch {
				origIdx := missIdx[start+j]
				single, itemErr := b.embedder.Embed(ctx, []string{text})
				if itemErr != nil || len(single) != 1 {
					if itemErr == nil {
						itemErr = fmt.Errorf("embedder returned %d vectors for 1 input", len(single))
					}
					failed[origIdx] = itemErr
					continue
				}
				vectors[origIdx] = single[0]
				b.storeVector(ctx, text, modelName, single[0])
			}
			continue
		}
		for j, emb := range embs {
			origIdx := missIdx[start+j]
			vectors[origIdx] = emb
			// Written immediately so a crash mid-call keeps the progress.
			b.storeVector(ctx, batch[j], modelName, emb)
		}
	}
	if len(failed) > 0 {
		return vectors, &PartialError{Errs: failed}
	}
	return vectors, nil
}

func (b *Batcher) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	embs, err := b.embedder.Embed(ctx, batch)
	if err != nil {
		logutil.GetLogger(ctx).Warn("batch embed failed, retrying once", zap.Error(err))
		embs, err = b.embedder.Embed(ctx, batch)
	}
	if err != nil {
		return nil, err
	}
	if len(embs) != len(batch) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(embs), len(batch))
	}
	return embs, nil
}

func (b *Batcher) storeVector(ctx context.Context, text, modelName string, vector []float32) {
	if b.cache == nil {
		return
	}
	if err := b.cache.Put(ctx, text, modelName, vector); err != nil {
		logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
	}
}
