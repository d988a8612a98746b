package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/runnerr0/dwell/internal/export"
	"github.com/runnerr0/dwell/internal/storage"
)

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}

	dir := c.Out
	if dir == "" {
		dir, err = cfg.ExportDir()
		if err != nil {
			return err
		}
	}

	store := c.store
	if store == nil {
		s, db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		defer s.Close()
		store = s
	}
	return c.executeWithStore(store, dir)
}

// executeWithStore runs the export against a provided store (for testing).
func (c *ExportCommand) executeWithStore(store *storage.SQLiteStore, dir string) error {
	var since time.Time
	if c.Since != "" {
		d, err := parseDuration(c.Since)
		if err != nil {
			return err
		}
		since = time.Now().Add(-d)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	res, err := export.New(store, log).Export(context.Background(), dir, since)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(map[string]any{
			"dir":       res.Dir,
			"visits":    res.Visits,
			"app_usage": res.AppUsage,
			"queries":   res.Queries,
		})
	}

	fmt.Printf("Exported %d visits, %d app intervals, %d searches to %s\n",
		res.Visits, res.AppUsage, res.Queries, res.Dir)
	return nil
}
