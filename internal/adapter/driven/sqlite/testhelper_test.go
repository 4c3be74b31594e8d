package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestDB opens a migrated in-memory database private to the calling test.
// Both pools share it through cache=shared; the test name keeps it isolated.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// WAL does not apply to memory databases.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)

	writer := openTestPool(t, dsn, 1)
	reader := openTestPool(t, dsn, 4)

	db := &DB{Writer: writer, Reader: reader}
	require.NoError(t, RunMigrations(db.Writer), "run migrations")

	return db
}

func openTestPool(t *testing.T, dsn string, maxConns int) *sql.DB {
	t.Helper()

	pool, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	pool.SetMaxOpenConns(maxConns)
	t.Cleanup(func() { _ = pool.Close() })

	require.NoError(t, pool.PingContext(context.Background()))
	return pool
}
