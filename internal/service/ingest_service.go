package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ragline/ragline/internal/embedcache"
	"github.com/ragline/ragline/internal/index"
	"github.com/ragline/ragline/internal/model"
	appErr "github.com/ragline/ragline/internal/pkg/errors"
)

// IngestService bulk-embeds pre-chunked document text and upserts it into
// the similarity index. Chunking itself happens upstream.
type IngestService struct {
	batcher *embedcache.Batcher
	index   index.Index
}

func NewIngestService(batcher *embedcache.Batcher, idx index.Index) *IngestService {
	return &IngestService{batcher: batcher, index: idx}
}

type IngestResult struct {
	Ingested int `json:"ingested"`
	Failed   int `json:"failed"`
}

func (s *IngestService) IngestChunks(ctx context.Context, chunks []model.Chunk) (*IngestResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.Int("chunks", len(chunks)))
	texts := make([]string, 0, len(chunks))
	now := time.Now().UnixMilli()
	for i := range chunks {
		chunks[i].Text = strings.TrimSpace(chunks[i].Text)
		if chunks[i].Text == "" {
			return nil, fmt.Errorf("%w: chunk %d has empty text", appErr.ErrInvalid, i)
		}
		if chunks[i].ID == "" {
			chunks[i].ID = uuid.NewString()
		}
		chunks[i].Mtime = now
		texts = append(texts, chunks[i].Text)
	}
	if len(texts) == 0 {
		return nil, appErr.ErrInvalid
	}

	vectors, err := s.batcher.EmbedAll(ctx, texts)
	var partial *embedcache.PartialError
	if err != nil && !errors.As(err, &partial) {
		logger.Error("bulk embed failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrUnavailable, err)
	}
	// Failed chunks are skipped, never reordered; the rest still go in.
	okChunks := make([]model.Chunk, 0, len(chunks))
	okVectors := make([][]float32, 0, len(chunks))
	failed := 0
	for i := range chunks {
		if partial != nil {
			if itemErr, ok := partial.Errs[i]; ok {
				failed++
				logger.Warn("chunk embed failed, skipping",
					zap.String("chunk_id", chunks[i].ID), zap.Error(itemErr))
				continue
			}
		}
		okChunks = append(okChunks, chunks[i])
		okVectors = append(okVectors, vectors[i])
	}
	if len(okChunks) > 0 {
		if err := s.index.Upsert(ctx, okChunks, okVectors); err != nil {
			logger.Error("index upsert failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", appErr.ErrUnavailable, err)
		}
	}
	logger.Info("ingest done", zap.Int("ingested", len(okChunks)), zap.Int("failed", failed))
	return &IngestResult{Ingested: len(okChunks), Failed: failed}, nil
}
