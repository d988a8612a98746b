// Package capture implements the capture-side session state machine: it
// tracks exactly one current attention target, derives durations from state
// transitions, and accumulates finished intervals into a batching queue
// flushed to the transport on a timer.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/wire"
)

// State is the tracker's attention state.
type State int

const (
	// StateIdle: no current target.
	StateIdle State = iota
	// StateTracking: current target, user active.
	StateTracking
	// StatePaused: current target, user idle or screen locked.
	StatePaused
)

// IdleSignal is an externally supplied notification about user activity.
type IdleSignal string

const (
	IdleActive IdleSignal = "active"
	IdleIdle   IdleSignal = "idle"
	IdleLocked IdleSignal = "locked"
)

// Target identifies the browser tab currently receiving attention.
type Target struct {
	URL   string
	Title string
	TabID int
}

// Sender hands a message to the transport. A non-nil error means the message
// was not accepted and its items must not be dropped.
type Sender interface {
	Send(msg *wire.Message) error
}

// Config holds the tracker's timing knobs.
type Config struct {
	// FlushInterval is the batch timer period.
	FlushInterval time.Duration
	// MinInterval: closed intervals shorter than this are discarded.
	MinInterval time.Duration
	// MaxOpen: an interval open longer than this is split so long dwell
	// times are not lost in one unflushed record.
	MaxOpen time.Duration
}

// FromCaptureConfig converts the YAML capture section.
func FromCaptureConfig(c config.CaptureConfig) Config {
	return Config{
		FlushInterval: time.Duration(c.FlushIntervalSeconds) * time.Second,
		MinInterval:   time.Duration(c.MinIntervalSeconds) * time.Second,
		MaxOpen:       time.Duration(c.MaxOpenIntervalSeconds) * time.Second,
	}
}

type openInterval struct {
	target Target
	start  time.Time
	active bool
}

// Tracker is the capture state machine. It owns the current attention
// interval and the outgoing queue. Event handlers and the flush timer arrive
// on different goroutines; one mutex keeps queue append and drain from ever
// interleaving.
type Tracker struct {
	clock  quartz.Clock
	cfg    Config
	sender Sender
	excl   *config.Exclusions
	log    *slog.Logger

	mu       sync.Mutex
	state    State
	lastIdle IdleSignal
	cur      *openInterval
	queue    []wire.Item
	enabled  bool
}

// NewTracker creates a Tracker. Tracking starts enabled.
func NewTracker(clock quartz.Clock, cfg Config, sender Sender, excl *config.Exclusions, log *slog.Logger) *Tracker {
	return &Tracker{
		clock:    clock,
		cfg:      cfg,
		sender:   sender,
		excl:     excl,
		log:      log,
		state:    StateIdle,
		lastIdle: IdleActive,
		enabled:  true,
	}
}

// State returns the current attention state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetTrackingEnabled gates capture. Disabling closes and discards the
// current interval; already-queued items remain queued but are not flushed
// until tracking is re-enabled.
func (t *Tracker) SetTrackingEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enabled && !enabled {
		t.cur = nil
		t.state = StateIdle
	}
	t.enabled = enabled
}

// TargetSwitch records that attention moved to a new target. The current
// interval (if any) is closed; a new one opens unless the target is
// excluded.
func (t *Tracker) TargetSwitch(target Target) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}

	t.closeCurrentLocked(now)

	// Private/internal targets are never opened in the first place.
	if t.excl.Excluded(target.URL) {
		t.state = StateIdle
		return
	}

	active := t.lastIdle == IdleActive
	t.cur = &openInterval{target: target, start: now, active: active}
	if active {
		t.state = StateTracking
	} else {
		t.state = StatePaused
	}
}

// IdleStateChange records an idle signal. Going idle closes the current
// interval and re-opens a zero-duration inactive placeholder; returning to
// active resets the start time to now; the idle gap is not credited
// retroactively.
func (t *Tracker) IdleStateChange(sig IdleSignal) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}

	t.lastIdle = sig

	if sig == IdleActive {
		if t.cur != nil {
			t.cur.start = now
			t.cur.active = true
			t.state = StateTracking
		} else {
			t.state = StateIdle
		}
		return
	}

	// idle or locked
	if t.cur != nil {
		target := t.cur.target
		t.closeCurrentLocked(now)
		t.cur = &openInterval{target: target, start: now, active: false}
		t.state = StatePaused
	}
}

// VisibilityChange toggles the active flag on the open interval without
// closing it.
func (t *Tracker) VisibilityChange(hidden bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled || t.cur == nil {
		return
	}
	t.cur.active = !hidden
}

// SearchPerformed queues a search query event.
func (t *Tracker) SearchPerformed(query, engine string) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.enqueueLocked(wire.KindSearchQuery, wire.SearchQuery{
		Query: query, SearchEngine: engine, SearchTime: now,
	}, now)
}

// SearchClicked queues a search result click event.
func (t *Tracker) SearchClicked(url, title string, position int) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.enqueueLocked(wire.KindSearchClick, wire.SearchClick{
		ResultURL: url, ResultTitle: title, ResultPosition: position, ClickTime: now,
	}, now)
}

// Suspend force-closes the current interval and flushes the queue
// synchronously. Called before process teardown; a batch handed to the
// transport here is not recalled.
func (t *Tracker) Suspend() error {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.closeCurrentLocked(now)
	t.state = StateIdle
	return t.sendQueueLocked()
}

// Flush drains the queue into one batch and hands it to the transport,
// honoring the tracking gate. Safe to call at any time; the flush timer
// calls it every period.
func (t *Tracker) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return nil
	}
	return t.sendQueueLocked()
}

// Run drives the flush timer until ctx is canceled. The same tick performs
// long-open-interval housekeeping.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := t.clock.TickerFunc(ctx, t.cfg.FlushInterval, func() error {
		t.tick()
		return nil
	}, "flush")

	err := ticker.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (t *Tracker) tick() {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.splitLongOpenLocked(now)

	if !t.enabled {
		return
	}
	if err := t.sendQueueLocked(); err != nil {
		t.log.Warn("flush failed, batch re-queued", "err", err, "queued", len(t.queue))
	}
}

// splitLongOpenLocked closes and immediately re-opens an interval that has
// been open longer than the ceiling.
func (t *Tracker) splitLongOpenLocked(now time.Time) {
	if t.cur == nil || now.Sub(t.cur.start) < t.cfg.MaxOpen {
		return
	}
	target, active := t.cur.target, t.cur.active
	t.closeCurrentLocked(now)
	t.cur = &openInterval{target: target, start: now, active: active}
}

// closeCurrentLocked finishes the open interval at now and queues it.
// Intervals shorter than the minimum are discarded, never queued.
func (t *Tracker) closeCurrentLocked(now time.Time) {
	cur := t.cur
	t.cur = nil
	if cur == nil {
		return
	}

	dur := now.Sub(cur.start)
	if dur < t.cfg.MinInterval {
		return
	}

	seconds := int64(dur / time.Second)
	activeSeconds := seconds
	if !cur.active {
		activeSeconds = 0
	}
	t.enqueueLocked(wire.KindVisit, wire.Visit{
		URL:             cur.target.URL,
		Title:           cur.target.Title,
		VisitTime:       cur.start,
		LeaveTime:       now,
		DurationSeconds: seconds,
		TabID:           cur.target.TabID,
		IsActive:        cur.active,
		ActiveSeconds:   activeSeconds,
	}, now)
}

func (t *Tracker) enqueueLocked(kind wire.ItemKind, payload any, now time.Time) {
	item, err := wire.NewItem(kind, payload, now)
	if err != nil {
		t.log.Error("drop unencodable item", "kind", string(kind), "err", err)
		return
	}
	t.queue = append(t.queue, item)
}

// sendQueueLocked drains the queue into one batch and sends it. On send
// failure the batch is put back at the head so FIFO order survives the next
// attempt.
func (t *Tracker) sendQueueLocked() error {
	if len(t.queue) == 0 {
		return nil
	}

	batch := t.queue
	t.queue = nil

	err := t.sender.Send(&wire.Message{Command: wire.CmdSaveBrowserData, Data: batch})
	if err != nil {
		t.queue = append(batch, t.queue...)
		return err
	}
	return nil
}

// QueueLen reports the number of queued items, for status surfaces.
func (t *Tracker) QueueLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}
