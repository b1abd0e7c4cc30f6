package repo

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS embedding_cache (
	cache_key TEXT PRIMARY KEY,
	model_name TEXT NOT NULL,
	embedding BLOB NOT NULL,
	byte_size INTEGER NOT NULL,
	ctime INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_embedding_cache_ctime ON embedding_cache (ctime);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	embedding BLOB NOT NULL,
	mtime INTEGER NOT NULL
);
`

func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// OpenOrReset opens the store, discarding an unreadable file instead of
// failing startup. Losing a cache is recoverable, a crash loop is not.
func OpenOrReset(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := Open(dbPath)
	if err == nil {
		return db, nil
	}
	logutil.GetLogger(ctx).Warn("store unreadable, starting empty",
		zap.String("db_path", dbPath), zap.Error(err))
	if rmErr := os.Remove(dbPath); rmErr != nil && !os.IsNotExist(rmErr) {
		return nil, fmt.Errorf("discard unreadable store: %w", rmErr)
	}
	return Open(dbPath)
}
