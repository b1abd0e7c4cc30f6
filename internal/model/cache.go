package model

// EmbeddingCacheEntry is one persisted vector, addressed by the hash of
// (normalized text, model name). Entries are immutable once written.
type EmbeddingCacheEntry struct {
	CacheKey  string    `json:"cache_key"`
	ModelName string    `json:"model_name"`
	Embedding []float32 `json:"embedding"`
	ByteSize  int64     `json:"byte_size"`
	Ctime     int64     `json:"ctime"`
}

type CacheStats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Entries    int64 `json:"entries"`
	TotalBytes int64 `json:"total_bytes"`
}
