package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// pragmas applied to every connection of a file-backed store.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"cache_size(-64000)",
}

// DB holds the two pools of a document store. Writer has a single connection,
// which serializes conditional writes; Reader allows concurrent reads.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
}

// NewDB opens the store file at dbPath in WAL mode, creating it if needed.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	dsn := "file:" + dbPath + "?_pragma=" + strings.Join(pragmas, "&_pragma=")

	writer, err := openPool(ctx, dsn, 1)
	if err != nil {
		return nil, fmt.Errorf("open writer for %s: %w", dbPath, err)
	}

	reader, err := openPool(ctx, dsn, 4)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader for %s: %w", dbPath, err)
	}

	return &DB{Writer: writer, Reader: reader}, nil
}

// openPool opens and pings a pool limited to maxConns connections.
func openPool(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(maxConns)

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Close closes both pools and reports every failure.
func (db *DB) Close() error {
	return errors.Join(db.Reader.Close(), db.Writer.Close())
}
