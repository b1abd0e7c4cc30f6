package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/ragline/ragline/internal/config"
	"github.com/ragline/ragline/internal/model"
)

// PgvectorIndex keeps chunk vectors in Postgres behind the pgvector
// extension. Requires the table to exist with an ivfflat or hnsw index;
// schema management stays with the operator.
type PgvectorIndex struct {
	db    *sqlx.DB
	table string
}

func NewPgvectorIndex(cfg config.PostgresConfig) (*PgvectorIndex, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &PgvectorIndex{db: db, table: cfg.Table}, nil
}

func (p *PgvectorIndex) Upsert(ctx context.Context, chunks []model.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch")
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, text, metadata, embedding, mtime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			mtime = EXCLUDED.mtime
	`, p.table)
	for i := range chunks {
		metaBlob, err := json.Marshal(chunks[i].Metadata)
		if err != nil {
			return err
		}
		_, err = p.db.ExecContext(ctx, query,
			chunks[i].ID,
			chunks[i].Text,
			string(metaBlob),
			pgvector.NewVector(vectors[i]),
			chunks[i].Mtime,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *PgvectorIndex) Search(ctx context.Context, vector []float32, topN int) ([]model.Candidate, error) {
	if topN <= 0 {
		topN = 5
	}
	query := fmt.Sprintf(`
		SELECT id, text, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, p.table)
	rows, err := p.db.QueryxContext(ctx, query, pgvector.NewVector(vector), topN)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Candidate
	for rows.Next() {
		var cand model.Candidate
		var metaBlob string
		if err := rows.Scan(&cand.ChunkID, &cand.Text, &metaBlob, &cand.Score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metaBlob), &cand.Metadata); err != nil {
			return nil, err
		}
		results = append(results, cand)
	}
	return results, rows.Err()
}

func (p *PgvectorIndex) Close() error {
	return p.db.Close()
}
