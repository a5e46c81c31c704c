// Package testutil provides helpers for repository and service tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"humormapper/internal/db"
	"humormapper/internal/snowflake"
)

// NewTestDB opens a migrated SQLite database in a temp dir, closed on cleanup.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// SeedUser inserts a user row and returns its ID.
func SeedUser(t *testing.T, database *sql.DB, email string) int64 {
	t.Helper()
	id := snowflake.NextID()
	_, err := database.Exec(
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		id, email, "hash", time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z07:00"),
	)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}
