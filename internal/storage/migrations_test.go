package storage

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	require.NoError(t, err)
	return count > 0
}

func TestMigrationRunner_CreatesSchema(t *testing.T) {
	db := openTestDB(t)

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	for _, table := range []string{
		"browsing_visits", "application_usage",
		"search_queries", "search_clicks",
		"navigation_events", "downloads", "bookmarks", "user_interactions",
		"tracking_settings", "schema_migrations",
	} {
		assert.True(t, tableExists(t, db, table), "table %s should exist", table)
	}
}

func TestMigrationRunner_RecordsVersion(t *testing.T) {
	db := openTestDB(t)

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	var version int
	var name string
	err := db.QueryRow("SELECT version, name FROM schema_migrations WHERE version = 1").Scan(&version, &name)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.Equal(t, "initial_schema", name)
}

func TestMigrationRunner_Idempotent(t *testing.T) {
	db := openTestDB(t)

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())
	require.NoError(t, runner.Run())

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "migration recorded exactly once")
}

func TestMigrationRunner_SeedsSettingsSingleton(t *testing.T) {
	db := openTestDB(t)

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	var enabled bool
	var days int
	err := db.QueryRow("SELECT tracking_enabled, retention_days FROM tracking_settings WHERE id = 1").Scan(&enabled, &days)
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, 90, days)

	// Singleton constraint: a second row is rejected.
	_, err = db.Exec("INSERT INTO tracking_settings (id) VALUES (2)")
	require.Error(t, err)
}
