// Package storagetest opens migrated in-memory databases for store tests.
package storagetest

import (
	"database/sql"
	"testing"

	"ministry/internal/adapters/storage"

	_ "modernc.org/sqlite"
)

// Open returns a migrated in-memory SQLite database closed on test cleanup.
// A single connection is kept so every query sees the same in-memory database.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}
