package retrieval

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ragline/ragline/internal/index"
	"github.com/ragline/ragline/internal/model"
)

// Retriever over-fetches candidates from the similarity index and re-ranks
// them with the blended score before truncating to k.
type Retriever struct {
	index      index.Index
	multiplier int
	weights    Weights
}

func NewRetriever(idx index.Index, multiplier int, weights Weights) *Retriever {
	if multiplier < 2 {
		multiplier = 2
	}
	return &Retriever{index: idx, multiplier: multiplier, weights: weights}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, queryVec []float32, k int) ([]model.RankedCandidate, error) {
	if k <= 0 {
		return nil, nil
	}
	candidates, err := r.index.Search(ctx, queryVec, k*r.multiplier)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	ranked := Rerank(candidates, query, r.weights)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	logutil.GetLogger(ctx).Debug("retrieval done",
		zap.Int("fetched", len(candidates)), zap.Int("kept", len(ranked)))
	return ranked, nil
}
