package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ragline/ragline/internal/model"
	"github.com/ragline/ragline/internal/repo"
)

// Cache is a content-addressed embedding cache: a persistent store keyed by
// the hash of (normalized text, model name), fronted by an expirable LRU
// hot tier. The persistent store is the authority; the LRU only mirrors it.
type Cache struct {
	repo     *repo.EmbeddingCacheRepo
	lru      *expirable.LRU[string, []float32]
	maxBytes int64

	hits       atomic.Int64
	misses     atomic.Int64
	totalBytes atomic.Int64
	evictMu    sync.Mutex
}

type Options struct {
	MaxBytes int64
	LRUSize  int
	LRUTTL   time.Duration
}

// New builds a cache over cacheRepo. A nil repo degrades to a memory-only
// cache, which keeps the pipeline alive when the store cannot be opened.
func New(ctx context.Context, cacheRepo *repo.EmbeddingCacheRepo, opts Options) *Cache {
	size := opts.LRUSize
	if size <= 0 {
		size = 2048
	}
	ttl := opts.LRUTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	c := &Cache{
		repo:     cacheRepo,
		lru:      expirable.NewLRU[string, []float32](size, nil, ttl),
		maxBytes: opts.MaxBytes,
	}
	if cacheRepo != nil {
		total, err := cacheRepo.TotalBytes(ctx)
		if err != nil {
			logutil.GetLogger(ctx).Warn("failed to read cache size, assuming empty", zap.Error(err))
		} else {
			c.totalBytes.Store(total)
		}
	}
	return c
}

// Key derives the cache key for a text under a model. Texts that differ
// only in whitespace map to the same key.
func Key(text, modelName string) string {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	hash := sha256.Sum256([]byte(modelName + "\x00" + NormalizeText(text)))
	return hex.EncodeToString(hash[:])
}

// NormalizeText trims the text and collapses internal whitespace runs to a
// single space.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Lookup returns the cached vector for (text, model), or false on a miss.
// A miss is counted; the caller is expected to compute and Put the vector.
func (c *Cache) Lookup(ctx context.Context, text, modelName string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	key := Key(text, modelName)
	if cached, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return cloneVector(cached), true
	}
	if c.repo != nil {
		values, ok, err := c.repo.Get(ctx, key)
		if err != nil {
			logutil.GetLogger(ctx).Warn("cache read failed", zap.Error(err))
		} else if ok {
			c.lru.Add(key, cloneVector(values))
			c.hits.Add(1)
			logutil.GetLogger(ctx).Debug("embedding cache hit (store)", zap.String("model", modelName))
			return values, true
		}
	}
	c.misses.Add(1)
	return nil, false
}

// Put persists the vector before updating the in-memory tier, so an entry
// observed in memory is always durable. Never called with a partial vector.
func (c *Cache) Put(ctx context.Context, text, modelName string, vector []float32) error {
	if c == nil || len(vector) == 0 {
		return nil
	}
	key := Key(text, modelName)
	size := int64(len(vector) * 4)
	if c.repo != nil {
		entry := &model.EmbeddingCacheEntry{
			CacheKey:  key,
			ModelName: modelName,
			Embedding: vector,
			ByteSize:  size,
			Ctime:     time.Now().Unix(),
		}
		if err := c.repo.Save(ctx, entry); err != nil {
			return err
		}
		// The byte budget tracks the persistent store only; with no
		// store the LRU bounds the cache by entry count.
		c.totalBytes.Add(size)
	}
	c.lru.Add(key, cloneVector(vector))
	c.evictOverBudget(ctx)
	return nil
}

// evictOverBudget runs opportunistically after writes, never mid-lookup.
func (c *Cache) evictOverBudget(ctx context.Context) {
	if c.repo == nil || c.maxBytes <= 0 {
		return
	}
	if c.totalBytes.Load() <= c.maxBytes {
		return
	}
	c.evictMu.Lock()
	defer c.evictMu.Unlock()
	over := c.totalBytes.Load() - c.maxBytes
	if over <= 0 {
		return
	}
	keys, freed, err := c.repo.EvictOldest(ctx, over)
	if err != nil {
		logutil.GetLogger(ctx).Warn("cache eviction failed", zap.Error(err))
		return
	}
	for _, key := range keys {
		c.lru.Remove(key)
	}
	c.totalBytes.Add(-freed)
	logutil.GetLogger(ctx).Info("cache evicted",
		zap.Int("entries", len(keys)), zap.Int64("freed_bytes", freed))
}

// EvictToBudget forces a size check outside the write path, used by the
// periodic sweep job.
func (c *Cache) EvictToBudget(ctx context.Context) {
	if c == nil {
		return
	}
	c.evictOverBudget(ctx)
}

// RefreshTotals re-reads the tracked byte size from the store, used after
// out-of-band deletions such as the age cleanup job.
func (c *Cache) RefreshTotals(ctx context.Context) {
	if c == nil || c.repo == nil {
		return
	}
	total, err := c.repo.TotalBytes(ctx)
	if err != nil {
		logutil.GetLogger(ctx).Warn("failed to refresh cache size", zap.Error(err))
		return
	}
	c.totalBytes.Store(total)
}

func (c *Cache) Stats(ctx context.Context) model.CacheStats {
	stats := model.CacheStats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		TotalBytes: c.totalBytes.Load(),
	}
	if c.repo != nil {
		if count, err := c.repo.Count(ctx); err == nil {
			stats.Entries = count
		}
	}
	return stats
}

func (c *Cache) Clear(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.repo != nil {
		if err := c.repo.Clear(ctx); err != nil {
			return err
		}
	}
	c.lru.Purge()
	c.totalBytes.Store(0)
	return nil
}

func cloneVector(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
