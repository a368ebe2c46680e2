// Package storagetest opens throwaway stores for tests in other packages.
package storagetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rl1809/shirt-tracker/internal/adapter/storage"
)

// NewSQLiteStore returns a migrated SQLite store in a temp dir, closed on cleanup.
func NewSQLiteStore(t testing.TB) *storage.SQLStore {
	t.Helper()

	ctx := context.Background()
	store, err := storage.Open(ctx, storage.Options{
		Driver: storage.DialectSQLite,
		DSN:    storage.SQLiteDSN(filepath.Join(t.TempDir(), "shirttrack.db")),
	})
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate sqlite store: %v", err)
	}
	return store
}
