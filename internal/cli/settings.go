package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/runnerr0/dwell/internal/storage"
	"github.com/runnerr0/dwell/internal/wire"
)

// Execute implements the go-flags Commander interface for SettingsCommand.
func (c *SettingsCommand) Execute(args []string) error {
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

// executeWithStore shows or patches settings against a provided store.
func (c *SettingsCommand) executeWithStore(store *storage.SQLiteStore) error {
	if c.Enable && c.Disable {
		return fmt.Errorf("--enable and --disable are mutually exclusive")
	}

	ctx := context.Background()

	var patch wire.SettingsPatch
	if c.Enable {
		v := true
		patch.TrackingEnabled = &v
	}
	if c.Disable {
		v := false
		patch.TrackingEnabled = &v
	}
	if c.Retention >= 0 {
		if c.Retention == 0 {
			return fmt.Errorf("retention must be at least 1 day")
		}
		days := c.Retention
		patch.RetentionDays = &days
	}

	if patch.TrackingEnabled != nil || patch.RetentionDays != nil {
		if err := store.UpdateSettings(ctx, patch); err != nil {
			return fmt.Errorf("update settings: %w", err)
		}
	}

	settings, err := store.Settings(ctx)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(settings)
	}

	state := "disabled"
	if settings.TrackingEnabled {
		state = "enabled"
	}
	fmt.Printf("Tracking:   %s\n", state)
	fmt.Printf("Retention:  %d days\n", settings.RetentionDays)
	return nil
}
