package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/export"
	"github.com/runnerr0/dwell/internal/ingest"
	"github.com/runnerr0/dwell/internal/sampler"
	"github.com/runnerr0/dwell/internal/storage"
)

// retentionInterval is how often the serve loop applies retention.
const retentionInterval = 24 * time.Hour

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}

	level := c.LogLevel
	if c.globals != nil && c.globals.Verbose {
		level = "debug"
	}
	log, err := newLogger(cfg, level)
	if err != nil {
		return err
	}

	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	return c.executeWithStore(cfg, store, log)
}

// executeWithStore runs the host against a provided store (for testing).
func (c *ServeCommand) executeWithStore(cfg *config.Config, store *storage.SQLiteStore, log *slog.Logger) error {
	in := c.in
	if in == nil {
		in = os.Stdin
	}
	out := c.out
	if out == nil {
		out = io.Writer(os.Stdout)
	}

	exportDir, err := cfg.ExportDir()
	if err != nil {
		return err
	}

	clock := quartz.NewReal()
	producer := sampler.NewCommandProducer(cfg.Sampler.SampleCommand)
	reconciler := sampler.NewReconciler(clock, sampler.FromSamplerConfig(cfg.Sampler), producer, store, log)
	exporter := export.New(store, log)
	svc := ingest.NewService(store, reconciler, exporter, exportDir, clock, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info("host started", "version", c.version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Dispatch loop ending means the capture side is gone; take the
		// retention loop down with it.
		defer cancel()
		return svc.Run(gctx, in, out)
	})
	g.Go(func() error {
		return svc.RunRetention(gctx, retentionInterval)
	})

	err = g.Wait()
	log.Info("host stopped", "err", err)
	return err
}
