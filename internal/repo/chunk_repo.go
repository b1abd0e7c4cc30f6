package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/ragline/ragline/internal/model"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) Save(ctx context.Context, chunk *model.Chunk, embedding []float32) error {
	embBlob, err := json.Marshal(embedding)
	if err != nil {
		return err
	}
	metaBlob, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":        chunk.ID,
		"text":      chunk.Text,
		"metadata":  string(metaBlob),
		"embedding": embBlob,
		"mtime":     chunk.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("chunks", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr = strings.Replace(sqlStr, "INSERT INTO", "INSERT OR REPLACE INTO", 1)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ChunkRepo) ListAll(ctx context.Context) ([]model.Chunk, [][]float32, error) {
	sqlStr, args, err := builder.BuildSelect("chunks", nil, []string{"id", "text", "metadata", "embedding", "mtime"})
	if err != nil {
		return nil, nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var chunks []model.Chunk
	var vectors [][]float32
	for rows.Next() {
		var chunk model.Chunk
		var metaBlob string
		var embBlob []byte
		if err := rows.Scan(&chunk.ID, &chunk.Text, &metaBlob, &embBlob, &chunk.Mtime); err != nil {
			return nil, nil, err
		}
		if err := json.Unmarshal([]byte(metaBlob), &chunk.Metadata); err != nil {
			return nil, nil, err
		}
		var embedding []float32
		if err := json.Unmarshal(embBlob, &embedding); err != nil {
			return nil, nil, err
		}
		chunks = append(chunks, chunk)
		vectors = append(vectors, embedding)
	}
	return chunks, vectors, rows.Err()
}

func (r *ChunkRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChunkRepo) Get(ctx context.Context, id string) (*model.Chunk, bool, error) {
	where := map[string]interface{}{
		"id": id,
	}
	sqlStr, args, err := builder.BuildSelect("chunks", where, []string{"id", "text", "metadata", "mtime"})
	if err != nil {
		return nil, false, err
	}
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var chunk model.Chunk
	var metaBlob string
	if err := row.Scan(&chunk.ID, &chunk.Text, &metaBlob, &chunk.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	if err := json.Unmarshal([]byte(metaBlob), &chunk.Metadata); err != nil {
		return nil, false, err
	}
	return &chunk, true, nil
}
