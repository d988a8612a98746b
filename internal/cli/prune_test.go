package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrune_DefaultRetention(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	seedVisit(t, store, "https://old.example/", now.AddDate(0, 0, -120), 60)
	seedVisit(t, store, "https://fresh.example/", now.Add(-time.Hour), 60)

	cmd := &PruneCommand{globals: &GlobalFlags{}, version: "test", store: store}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})

	assert.Contains(t, output, "Pruned 1 records")
	assert.Contains(t, output, "90 days")

	visits, err := store.VisitsSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, "https://fresh.example/", visits[0].URL)
}

func TestPrune_CustomOlderThan(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	seedVisit(t, store, "https://old.example/", now.AddDate(0, 0, -10), 60)
	seedVisit(t, store, "https://fresh.example/", now.Add(-time.Hour), 60)

	cmd := &PruneCommand{OlderThan: "7d", globals: &GlobalFlags{}, version: "test", store: store}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})

	assert.Contains(t, output, "Pruned 1 records")
	assert.Contains(t, output, "7 days")
}

func TestPrune_NothingToPrune(t *testing.T) {
	store := newTestStore(t)
	seedVisit(t, store, "https://fresh.example/", time.Now().Add(-time.Hour), 60)

	cmd := &PruneCommand{globals: &GlobalFlags{}, version: "test", store: store}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})

	assert.Contains(t, output, "Pruned 0 records")
}

func TestPrune_BadDuration(t *testing.T) {
	store := newTestStore(t)

	cmd := &PruneCommand{OlderThan: "soon", globals: &GlobalFlags{}, version: "test", store: store}
	err := cmd.Execute(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}
