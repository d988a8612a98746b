package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/runnerr0/dwell/internal/storage"
)

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}

	if !c.Force {
		fmt.Println("⚠ WARNING: This will permanently delete ALL captured data.")
		fmt.Println("  - All browsing visits and search history")
		fmt.Println("  - All application usage intervals")
		fmt.Println("  - All navigation, download, and bookmark events")
		fmt.Println()
		fmt.Println("Tracking settings are preserved. This action cannot be undone.")
		fmt.Println()
		fmt.Print(`Type "PURGE" to confirm: `)

		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			return fmt.Errorf("aborted: no input received")
		}
		if strings.TrimSpace(scanner.Text()) != "PURGE" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

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

// executeWithStore deletes all data against a provided store (for testing).
func (c *PurgeCommand) executeWithStore(store *storage.SQLiteStore) error {
	if err := store.ClearData(context.Background()); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(map[string]any{
			"purged":  true,
			"message": "all captured data deleted",
		})
	}

	fmt.Println("Purged all captured data. Settings preserved.")
	return nil
}
