package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/ragline/ragline/internal/model"
)

type EmbeddingCacheRepo struct {
	db *sql.DB
}

func NewEmbeddingCacheRepo(db *sql.DB) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{db: db}
}

func (r *EmbeddingCacheRepo) Get(ctx context.Context, cacheKey string) ([]float32, bool, error) {
	where := map[string]interface{}{
		"cache_key": cacheKey,
	}
	sqlStr, args, err := builder.BuildSelect("embedding_cache", where, []string{"embedding"})
	if err != nil {
		return nil, false, err
	}
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	var embedding []float32
	if err := json.Unmarshal(blob, &embedding); err != nil {
		return nil, false, err
	}
	return embedding, true, nil
}

func (r *EmbeddingCacheRepo) Save(ctx context.Context, entry *model.EmbeddingCacheEntry) error {
	blob, err := json.Marshal(entry.Embedding)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"cache_key":  entry.CacheKey,
		"model_name": entry.ModelName,
		"embedding":  blob,
		"byte_size":  entry.ByteSize,
		"ctime":      entry.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("embedding_cache", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr = strings.Replace(sqlStr, "INSERT INTO", "INSERT OR REPLACE INTO", 1)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *EmbeddingCacheRepo) TotalBytes(ctx context.Context) (int64, error) {
	const query = `SELECT COALESCE(SUM(byte_size), 0) FROM embedding_cache`
	var total int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *EmbeddingCacheRepo) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM embedding_cache`
	var count int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// EvictOldest deletes entries oldest-created-first until at least
// bytesToFree bytes are gone. Returns the evicted keys and freed bytes.
func (r *EmbeddingCacheRepo) EvictOldest(ctx context.Context, bytesToFree int64) ([]string, int64, error) {
	if bytesToFree <= 0 {
		return nil, 0, nil
	}
	const query = `SELECT cache_key, byte_size FROM embedding_cache ORDER BY ctime ASC, cache_key ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var keys []string
	var freed int64
	for rows.Next() {
		var key string
		var size int64
		if err := rows.Scan(&key, &size); err != nil {
			return nil, 0, err
		}
		keys = append(keys, key)
		freed += size
		if freed >= bytesToFree {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(keys) == 0 {
		return nil, 0, nil
	}
	where := map[string]interface{}{
		"cache_key in": keys,
	}
	sqlStr, args, err := builder.BuildDelete("embedding_cache", where)
	if err != nil {
		return nil, 0, err
	}
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return nil, 0, err
	}
	return keys, freed, nil
}

func (r *EmbeddingCacheRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	const query = `DELETE FROM embedding_cache WHERE ctime < ?`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *EmbeddingCacheRepo) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM embedding_cache`)
	return err
}
