package sampler

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandProducer observes the foreground window by running a platform
// helper. The helper prints one line: app name, bundle id, and window title,
// tab-separated. An empty app name means nothing has focus.
type CommandProducer struct {
	argv []string
}

func NewCommandProducer(argv []string) *CommandProducer {
	return &CommandProducer{argv: argv}
}

func (p *CommandProducer) Sample(ctx context.Context) (WindowSample, error) {
	if len(p.argv) == 0 {
		return WindowSample{}, errors.New("no sample command configured")
	}

	out, err := exec.CommandContext(ctx, p.argv[0], p.argv[1:]...).Output()
	if err != nil {
		return WindowSample{}, fmt.Errorf("run %s: %w", p.argv[0], err)
	}
	return parseSampleLine(string(out)), nil
}

func parseSampleLine(out string) WindowSample {
	line := out
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimRight(line, "\r")

	fields := strings.SplitN(line, "\t", 3)
	var s WindowSample
	s.AppName = strings.TrimSpace(fields[0])
	if len(fields) > 1 {
		s.BundleID = strings.TrimSpace(fields[1])
	}
	if len(fields) > 2 {
		s.WindowTitle = fields[2]
	}
	return s
}
