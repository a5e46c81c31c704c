package db_test

import (
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"humormapper/internal/db"
)

func TestOpen_CreatesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	database, err := db.Open(dbPath)
	require.NoError(t, err)
	defer database.Close()

	for _, table := range []string{"users", "sessions", "settings", "humor_translations"} {
		var name string
		err = database.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
		require.Equal(t, table, name)
	}

	var count int
	err = database.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('sessions') WHERE name = 'user_agent'`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestMigrate_Idempotent(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, db.Migrate(database))
	require.NoError(t, db.Migrate(database))
}

func TestOpen_ForeignKeysEnabled(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer database.Close()

	var enabled int
	require.NoError(t, database.QueryRow("PRAGMA foreign_keys").Scan(&enabled))
	require.Equal(t, 1, enabled)
}

// Pragmas must live in the DSN: PRAGMA statements run through Exec only affect
// the one pooled connection that executed them.
func TestBuildDSN_AllPragmasInDSN(t *testing.T) {
	dsn := db.BuildDSN("mydb.sqlite")
	require.Contains(t, dsn, "file:mydb.sqlite")

	decoded, err := url.QueryUnescape(dsn)
	require.NoError(t, err)
	for _, pragma := range []string{
		"journal_mode(WAL)",
		"foreign_keys(ON)",
		"busy_timeout(30000)",
		"synchronous(NORMAL)",
	} {
		require.Contains(t, decoded, pragma, "DSN must contain pragma: "+pragma)
	}
}
