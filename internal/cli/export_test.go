package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport_WritesFiles(t *testing.T) {
	store := newTestStore(t)
	seedVisit(t, store, "https://a.example/", time.Now().Add(-time.Hour), 120)
	dir := t.TempDir()

	cmd := &ExportCommand{globals: &GlobalFlags{}, version: "test", store: store}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, dir))
	})

	assert.Contains(t, output, "Exported 1 visits")
	assert.Contains(t, output, dir)

	for _, name := range []string{
		"browsing_visits.csv", "application_usage.csv",
		"search_queries.csv", "activity_export.json",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestExport_SinceRejectsBadDuration(t *testing.T) {
	store := newTestStore(t)

	cmd := &ExportCommand{Since: "nonsense", globals: &GlobalFlags{}, version: "test", store: store}
	err := cmd.executeWithStore(store, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestExport_SinceFiltersOld(t *testing.T) {
	store := newTestStore(t)
	seedVisit(t, store, "https://old.example/", time.Now().AddDate(0, 0, -30), 120)
	seedVisit(t, store, "https://new.example/", time.Now().Add(-time.Hour), 120)
	dir := t.TempDir()

	cmd := &ExportCommand{Since: "7d", globals: &GlobalFlags{}, version: "test", store: store}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, dir))
	})

	assert.Contains(t, output, "Exported 1 visits")
}
