package cli

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/storage"
	"github.com/runnerr0/dwell/internal/wire"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// newTestStore creates a migrated in-memory store with default exclusions.
func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.NewMigrationRunner(db).Run())

	excl, err := config.DefaultConfig().Exclusions.Compile()
	require.NoError(t, err)
	store, err := storage.NewSQLiteStore(db, excl)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedVisit inserts one visit ending at the given time.
func seedVisit(t *testing.T, store *storage.SQLiteStore, url string, end time.Time, seconds int64) {
	t.Helper()
	item, err := wire.NewItem(wire.KindVisit, wire.Visit{
		URL: url, Title: url,
		VisitTime: end.Add(-time.Duration(seconds) * time.Second), LeaveTime: end,
		DurationSeconds: seconds, IsActive: true, ActiveSeconds: seconds,
	}, end)
	require.NoError(t, err)
	saved, err := store.SaveBatch(context.Background(), []wire.Item{item})
	require.NoError(t, err)
	require.Equal(t, 1, saved)
}
