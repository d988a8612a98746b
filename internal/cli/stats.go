package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/dwell/internal/storage"
)

// Execute implements the go-flags Commander interface for StatsCommand.
func (c *StatsCommand) Execute(args []string) error {
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

// executeWithStore runs stats against a provided store (for testing).
func (c *StatsCommand) executeWithStore(store *storage.SQLiteStore) error {
	stats, err := store.TodayStats(context.Background(), time.Now())
	if err != nil {
		return fmt.Errorf("today stats: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Println("Today's Activity")
	fmt.Println("================")
	fmt.Printf("Sites visited:    %d\n", stats.SitesVisited)
	fmt.Printf("Browsing time:    %s\n", formatSeconds(stats.TotalTimeSeconds))
	fmt.Printf("Searches:         %d\n", stats.SearchQueries)
	fmt.Printf("Applications:     %d\n", stats.ApplicationsUsed)

	if len(stats.TopSites) > 0 {
		fmt.Println()
		fmt.Println("Top Sites:")
		for i, site := range stats.TopSites {
			title := site.Title
			if title == "" {
				title = site.URL
			}
			fmt.Printf("  %d. %-40s %s\n", i+1, title, formatSeconds(site.Time))
		}
	}

	return nil
}
