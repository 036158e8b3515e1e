// Package dbtest provides migrated SQLite stores for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmehdipour/linkdb/internal/db"
	"github.com/stretchr/testify/require"
)

// NewStore returns a migrated store backed by a temporary SQLite file.
// The store is closed when the test ends.
func NewStore(t testing.TB) *db.Store {
	t.Helper()

	dbx, err := db.NewSQLiteConnection(filepath.Join(t.TempDir(), "linkdb.db"), db.SQLiteOpts{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbx.Close() })

	require.NoError(t, db.Migrate(context.Background(), dbx, "sqlite", nil))

	return db.NewStore(dbx, db.SQLite{}, 5*time.Second)
}
