package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Serve    *ServeCommand
	Stats    *StatsCommand
	Export   *ExportCommand
	Settings *SettingsCommand
	Prune    *PruneCommand
	Purge    *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "dwell"
	parser.LongDescription = "Local attention tracking: captures browser and application activity into a private SQLite database."

	cmds := &commands{
		Serve:    &ServeCommand{globals: &globals, version: version},
		Stats:    &StatsCommand{globals: &globals, version: version},
		Export:   &ExportCommand{globals: &globals, version: version},
		Settings: &SettingsCommand{globals: &globals, version: version},
		Prune:    &PruneCommand{globals: &globals, version: version},
		Purge:    &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("serve", "Run the ingestion host", "Run the ingestion host, reading framed messages on stdin and answering on stdout.", cmds.Serve)
	parser.AddCommand("stats", "Show today's activity", "Show today's captured activity aggregates.", cmds.Stats)
	parser.AddCommand("export", "Export captured activity", "Export captured activity as CSV files plus a combined JSON document.", cmds.Export)
	parser.AddCommand("settings", "Show or update tracking settings", "Show or update the tracking enabled flag and retention period.", cmds.Settings)
	parser.AddCommand("prune", "Apply retention", "Delete records older than the retention period.", cmds.Prune)
	parser.AddCommand("purge", "Delete ALL captured data", "Delete ALL captured data. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the dwell CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the
// matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("dwell %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
