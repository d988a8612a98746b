// Package sampler turns a stream of foreground-window observations into
// closed application usage intervals. It polls a Producer once per tick,
// compares the sample against the interval currently open in memory, and
// writes the old interval to storage when the identity changes.
package sampler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/storage"
)

// WindowSample is one observation of the foreground window. A zero AppName
// means no window had focus.
type WindowSample struct {
	AppName     string
	BundleID    string
	WindowTitle string
}

// Producer observes the foreground window. Sample is given at most one poll
// interval; overrunning it cancels the ctx and the tick is skipped.
type Producer interface {
	Sample(ctx context.Context) (WindowSample, error)
}

// UsageStore is the slice of the storage layer the sampler writes to.
type UsageStore interface {
	InsertAppUsage(ctx context.Context, u storage.AppUsage) error
}

// Config holds the sampler's poll interval and browser identification.
type Config struct {
	PollInterval time.Duration
	// BrowserBundleIDs marks intervals whose bundle id is in the set, so
	// browser foreground time can be cross-checked against tab intervals.
	BrowserBundleIDs []string
}

// FromSamplerConfig converts the YAML sampler section.
func FromSamplerConfig(c config.SamplerConfig) Config {
	return Config{
		PollInterval:     time.Duration(c.PollIntervalSeconds) * time.Second,
		BrowserBundleIDs: c.BrowserBundleIDs,
	}
}

type openUsage struct {
	sample WindowSample
	start  time.Time
}

// Reconciler drives the poll loop. Start and Stop are idempotent; sampling
// failures are absorbed without touching the interval already open.
type Reconciler struct {
	clock    quartz.Clock
	producer Producer
	store    UsageStore
	poll     time.Duration
	browsers map[string]struct{}
	log      *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	cur     *openUsage
}

// NewReconciler creates a stopped Reconciler.
func NewReconciler(clock quartz.Clock, cfg Config, producer Producer, store UsageStore, log *slog.Logger) *Reconciler {
	browsers := make(map[string]struct{}, len(cfg.BrowserBundleIDs))
	for _, id := range cfg.BrowserBundleIDs {
		browsers[id] = struct{}{}
	}
	return &Reconciler{
		clock:    clock,
		producer: producer,
		store:    store,
		poll:     cfg.PollInterval,
		browsers: browsers,
		log:      log,
	}
}

// Running reports whether the poll loop is active.
func (r *Reconciler) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start launches the poll loop. Starting a running reconciler is a no-op.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.running = true
	r.cancel = cancel
	r.done = done

	waiter := r.clock.TickerFunc(loopCtx, r.poll, func() error {
		r.tick(loopCtx)
		return nil
	}, "sample")
	go func() {
		defer close(done)
		_ = waiter.Wait()
	}()

	r.log.Info("app tracking started", "poll", r.poll)
}

// Stop halts the poll loop and closes the interval left open, so foreground
// time up to the stop is not lost. Stopping a stopped reconciler is a no-op.
func (r *Reconciler) Stop(ctx context.Context) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	cancel()
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeCurrentLocked(ctx, r.clock.Now())
	r.log.Info("app tracking stopped")
}

// tick takes one sample and reconciles it against the open interval.
func (r *Reconciler) tick(ctx context.Context) {
	sampleCtx, cancel := context.WithTimeout(ctx, r.poll)
	sample, err := r.producer.Sample(sampleCtx)
	cancel()
	if err != nil {
		// Keep the open interval; a flaky producer must not corrupt
		// durations already being accumulated.
		r.log.Debug("window sample failed", "err", err)
		return
	}

	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if sample.AppName == "" {
		r.closeCurrentLocked(ctx, now)
		return
	}
	if r.cur != nil && r.cur.sample.AppName == sample.AppName &&
		r.cur.sample.WindowTitle == sample.WindowTitle {
		return
	}

	r.closeCurrentLocked(ctx, now)
	r.cur = &openUsage{sample: sample, start: now}
}

// closeCurrentLocked writes the open interval, if any, ending it at now.
// Write failures drop the interval; the loop carries on.
func (r *Reconciler) closeCurrentLocked(ctx context.Context, now time.Time) {
	cur := r.cur
	r.cur = nil
	if cur == nil {
		return
	}

	_, isBrowser := r.browsers[cur.sample.BundleID]
	u := storage.AppUsage{
		AppName:         cur.sample.AppName,
		BundleID:        cur.sample.BundleID,
		WindowTitle:     cur.sample.WindowTitle,
		StartTime:       cur.start,
		EndTime:         now,
		DurationSeconds: int64(now.Sub(cur.start) / time.Second),
		IsBrowser:       isBrowser,
	}
	if err := r.store.InsertAppUsage(ctx, u); err != nil {
		r.log.Warn("persist app usage", "app", u.AppName, "err", err)
	}
}
