package cli

import (
	"io"

	"github.com/runnerr0/dwell/internal/storage"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// ServeCommand — run the ingestion host on stdin/stdout.
type ServeCommand struct {
	LogLevel string `long:"log-level" description:"Override log level"`

	globals *GlobalFlags
	version string

	// injectable for testing; nil means os.Stdin/os.Stdout
	in  io.Reader
	out io.Writer
}

// StatsCommand — print today's activity aggregates.
type StatsCommand struct {
	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore // injectable for testing
}

// ExportCommand — write captured activity as CSV and JSON files.
type ExportCommand struct {
	Out   string `long:"out" description:"Output directory (default from config)"`
	Since string `long:"since" description:"Only records newer than duration (e.g., 7d, 24h)"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
}

// SettingsCommand — show or update tracking settings.
type SettingsCommand struct {
	Enable    bool `long:"enable" description:"Enable tracking"`
	Disable   bool `long:"disable" description:"Disable tracking"`
	Retention int  `long:"retention" description:"Set retention in days" default:"-1"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
}

// PruneCommand — apply retention to remove expired records.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 30d)"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
}

// PurgeCommand — delete ALL captured data with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
}
