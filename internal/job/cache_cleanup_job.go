package job

import (
	"context"
	"time"

	"github.com/ragline/ragline/internal/embedcache"
	"github.com/ragline/ragline/internal/repo"
)

// CacheCleanupJob drops cache entries older than maxAgeDays. Stale vectors
// cost disk for texts that may never be embedded again.
type CacheCleanupJob struct {
	repo       *repo.EmbeddingCacheRepo
	cache      *embedcache.Cache
	maxAgeDays int
}

func NewCacheCleanupJob(cacheRepo *repo.EmbeddingCacheRepo, cache *embedcache.Cache, maxAgeDays int) *CacheCleanupJob {
	return &CacheCleanupJob{repo: cacheRepo, cache: cache, maxAgeDays: maxAgeDays}
}

func (j *CacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *CacheCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil {
		return nil
	}
	maxAgeDays := j.maxAgeDays
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	cutoff := time.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour).Unix()
	if _, err := j.repo.DeleteBefore(ctx, cutoff); err != nil {
		return err
	}
	j.cache.RefreshTotals(ctx)
	return nil
}
