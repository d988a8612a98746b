// Package ingest implements the host side of the pipeline: a dispatch loop
// that reads framed messages from the capture side, applies them to storage,
// and answers every message with a status response.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/coder/quartz"

	"github.com/runnerr0/dwell/internal/export"
	"github.com/runnerr0/dwell/internal/storage"
	"github.com/runnerr0/dwell/internal/wire"
)

// AppTracker is the window sampler as the dispatch loop drives it.
type AppTracker interface {
	Start(ctx context.Context)
	Stop(ctx context.Context)
	Running() bool
}

// Exporter runs one export into dir.
type Exporter interface {
	Export(ctx context.Context, dir string, since time.Time) (*export.Result, error)
}

// Service handles the closed command set. One instance serves one
// connection; commands execute in arrival order.
type Service struct {
	store     storage.Store
	tracker   AppTracker
	exporter  Exporter
	exportDir string
	clock     quartz.Clock
	log       *slog.Logger
}

func NewService(store storage.Store, tracker AppTracker, exporter Exporter, exportDir string, clock quartz.Clock, log *slog.Logger) *Service {
	return &Service{
		store:     store,
		tracker:   tracker,
		exporter:  exporter,
		exportDir: exportDir,
		clock:     clock,
		log:       log,
	}
}

// Run reads messages from in and writes a response for each to out, until
// in reaches EOF or ctx is canceled. EOF is the normal shutdown path: the
// capture side went away, so the sampler is stopped before returning.
func (s *Service) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	defer s.tracker.Stop(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}

		payload, err := wire.ReadFrame(in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Info("input closed, shutting down")
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		var msg wire.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			// The frame boundary is intact, so the stream is still usable.
			s.log.Warn("malformed message", "err", err)
			if werr := wire.Encode(out, wire.ErrorResponse("", fmt.Errorf("malformed message: %w", err))); werr != nil {
				return fmt.Errorf("write response: %w", werr)
			}
			continue
		}

		resp := s.handle(ctx, &msg)
		if err := wire.Encode(out, resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}

func (s *Service) handle(ctx context.Context, msg *wire.Message) *wire.Response {
	switch msg.Command {
	case wire.CmdSaveBrowserData:
		saved, err := s.store.SaveBatch(ctx, msg.Data)
		if err != nil {
			s.log.Error("save batch", "items", len(msg.Data), "err", err)
			return wire.ErrorResponse(msg.Command, err)
		}
		s.log.Debug("batch saved", "items", len(msg.Data), "saved", saved)
		return &wire.Response{Status: wire.StatusSuccess, Command: msg.Command, Saved: saved}

	case wire.CmdGetStats:
		stats, err := s.store.TodayStats(ctx, s.clock.Now())
		if err != nil {
			return wire.ErrorResponse(msg.Command, err)
		}
		return &wire.Response{Status: wire.StatusSuccess, Command: msg.Command, Stats: stats}

	case wire.CmdUpdateSettings:
		if msg.Settings == nil {
			return wire.ErrorResponse(msg.Command, errors.New("no settings in message"))
		}
		if err := s.store.UpdateSettings(ctx, *msg.Settings); err != nil {
			return wire.ErrorResponse(msg.Command, err)
		}
		return &wire.Response{Status: wire.StatusSuccess, Command: msg.Command, Message: "settings updated"}

	case wire.CmdClearData:
		if err := s.store.ClearData(ctx); err != nil {
			return wire.ErrorResponse(msg.Command, err)
		}
		s.log.Info("all captured data cleared")
		return &wire.Response{Status: wire.StatusSuccess, Command: msg.Command, Message: "all data cleared"}

	case wire.CmdExportData:
		res, err := s.exporter.Export(ctx, s.exportDir, time.Time{})
		if err != nil {
			return wire.ErrorResponse(msg.Command, err)
		}
		return &wire.Response{
			Status:  wire.StatusSuccess,
			Command: msg.Command,
			Message: fmt.Sprintf("exported to %s", res.Dir),
		}

	case wire.CmdStartAppTracking:
		s.tracker.Start(ctx)
		return &wire.Response{Status: wire.StatusSuccess, Command: msg.Command, Message: "app tracking started"}

	case wire.CmdStopAppTracking:
		s.tracker.Stop(ctx)
		return &wire.Response{Status: wire.StatusSuccess, Command: msg.Command, Message: "app tracking stopped"}

	default:
		return wire.ErrorResponse(msg.Command, fmt.Errorf("unknown command %q", msg.Command))
	}
}

// RunRetention applies the configured retention once per interval. The
// cutoff comes from the settings row on every pass, so an update_settings
// takes effect without a restart.
func (s *Service) RunRetention(ctx context.Context, interval time.Duration) error {
	waiter := s.clock.TickerFunc(ctx, interval, func() error {
		s.pruneOnce(ctx)
		return nil
	}, "retention")

	err := waiter.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Service) pruneOnce(ctx context.Context) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		s.log.Warn("read settings for retention", "err", err)
		return
	}
	if settings.RetentionDays <= 0 {
		return
	}

	cutoff := s.clock.Now().AddDate(0, 0, -settings.RetentionDays)
	pruned, err := s.store.PruneExpired(ctx, cutoff)
	if err != nil {
		s.log.Warn("prune expired", "err", err)
		return
	}
	if pruned > 0 {
		s.log.Info("retention applied", "pruned", pruned, "cutoff", cutoff)
	}
}
