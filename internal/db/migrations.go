package db

import (
	"database/sql"
	"fmt"
)

// Base schema. IDs are snowflakes assigned by the application.
const baseSchema = `
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  user_id INTEGER NOT NULL,
  created_at TEXT NOT NULL,
  expires_at TEXT NOT NULL,
  FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);

CREATE TABLE IF NOT EXISTS settings (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS humor_translations (
  id INTEGER PRIMARY KEY,
  user_id INTEGER NOT NULL,
  user_email TEXT NOT NULL,
  original_text TEXT NOT NULL,
  target_culture TEXT NOT NULL,
  translated_text TEXT NOT NULL,
  model_used TEXT NOT NULL,
  created_at TEXT NOT NULL,
  FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_humor_translations_user_created
  ON humor_translations(user_id, created_at DESC);
`

func Migrate(db *sql.DB) error {
	if _, err := db.Exec(baseSchema); err != nil {
		return fmt.Errorf("migrate base schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrations(db *sql.DB) error {
	// Migration 1: record the client user agent on sessions
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info('sessions') WHERE name = 'user_agent'
	`).Scan(&count)
	if err != nil {
		return fmt.Errorf("check user_agent column: %w", err)
	}
	if count == 0 {
		if _, err := db.Exec(`ALTER TABLE sessions ADD COLUMN user_agent TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("add user_agent column: %w", err)
		}
	}
	return nil
}
