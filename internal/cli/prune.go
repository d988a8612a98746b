package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/dwell/internal/storage"
)

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	store := c.store
	if store == nil {
		cfg, err := loadConfig(c.globals)
		if err != nil {
			return err
		}
		s, db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		defer s.Close()
		store = s
	}
	return c.executeWithStore(store)
}

// executeWithStore applies retention against a provided store (for testing).
func (c *PruneCommand) executeWithStore(store *storage.SQLiteStore) error {
	ctx := context.Background()

	var retention time.Duration
	if c.OlderThan != "" {
		d, err := parseDuration(c.OlderThan)
		if err != nil {
			return err
		}
		retention = d
	} else {
		settings, err := store.Settings(ctx)
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}
		retention = time.Duration(settings.RetentionDays) * 24 * time.Hour
	}

	cutoff := time.Now().Add(-retention)
	pruned, err := store.PruneExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(map[string]any{
			"pruned":    pruned,
			"retention": formatDurationHuman(retention),
		})
	}

	fmt.Printf("Pruned %d records older than %s\n", pruned, formatDurationHuman(retention))
	return nil
}

// formatDurationHuman formats a duration like "30 days" or "12 hours".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}
