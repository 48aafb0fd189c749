package testutil

import (
	"path/filepath"
	"testing"

	"blog/internal/db"
)

// NewTestDB opens a migrated sqlite database in a per-test temp directory.
// The database is closed when the test completes.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})

	if err := db.Migrate(store); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return store
}
