package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/transit-cache/pkg/storage"
)

// OpenDB opens a migrated store in a temporary directory. It is closed when
// the test ends.
func OpenDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := storage.Open(context.Background(),
		storage.DefaultConfig(filepath.Join(t.TempDir(), "transit-test.db")), zerolog.Nop())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
