package job

import (
	"context"

	"github.com/ragline/ragline/internal/embedcache"
)

// CacheSweepJob reconciles the tracked byte total with the store. Eviction
// after writes keeps the cache under budget in steady state; this sweep
// catches drift from concurrent re-puts and out-of-band deletions.
type CacheSweepJob struct {
	cache *embedcache.Cache
}

func NewCacheSweepJob(cache *embedcache.Cache) *CacheSweepJob {
	return &CacheSweepJob{cache: cache}
}

func (j *CacheSweepJob) Name() string {
	return "embedding_cache_sweep"
}

func (j *CacheSweepJob) Run(ctx context.Context) error {
	if j.cache == nil {
		return nil
	}
	j.cache.RefreshTotals(ctx)
	j.cache.EvictToBudget(ctx)
	return nil
}
