package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/wire"
)

type fakeSender struct {
	mu      sync.Mutex
	batches [][]wire.Item
	fail    bool
}

func (f *fakeSender) Send(msg *wire.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("pipe broken")
	}
	f.batches = append(f.batches, msg.Data)
	return nil
}

func (f *fakeSender) sent() [][]wire.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]wire.Item, len(f.batches))
	copy(out, f.batches)
	return out
}

func (f *fakeSender) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func testConfig() Config {
	return Config{
		FlushInterval: 30 * time.Second,
		MinInterval:   time.Second,
		MaxOpen:       5 * time.Minute,
	}
}

func newTestTracker(t *testing.T) (*Tracker, *fakeSender, *quartz.Mock) {
	t.Helper()
	mClock := quartz.NewMock(t)
	sender := &fakeSender{}
	excl, err := config.DefaultConfig().Exclusions.Compile()
	require.NoError(t, err)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTracker(mClock, testConfig(), sender, excl, log), sender, mClock
}

func decodeVisits(t *testing.T, items []wire.Item) []wire.Visit {
	t.Helper()
	var visits []wire.Visit
	for _, item := range items {
		if item.Kind != wire.KindVisit {
			continue
		}
		var v wire.Visit
		require.NoError(t, item.DecodePayload(&v))
		visits = append(visits, v)
	}
	return visits
}

func TestTracker_SwitchClosesPrevious(t *testing.T) {
	tr, sender, mClock := newTestTracker(t)

	tr.TargetSwitch(Target{URL: "https://a.example/", Title: "A", TabID: 1})
	assert.Equal(t, StateTracking, tr.State())

	mClock.Advance(40 * time.Second)
	tr.TargetSwitch(Target{URL: "https://b.example/", Title: "B", TabID: 2})

	require.NoError(t, tr.Flush())
	batches := sender.sent()
	require.Len(t, batches, 1)
	visits := decodeVisits(t, batches[0])
	require.Len(t, visits, 1)
	assert.Equal(t, "https://a.example/", visits[0].URL)
	assert.Equal(t, int64(40), visits[0].DurationSeconds)
	assert.True(t, visits[0].IsActive)
}

func TestTracker_ExcludedTargetNeverOpens(t *testing.T) {
	tr, sender, mClock := newTestTracker(t)

	tr.TargetSwitch(Target{URL: "chrome://settings", TabID: 1})
	assert.Equal(t, StateIdle, tr.State())

	mClock.Advance(time.Minute)
	tr.TargetSwitch(Target{URL: "https://ok.example/", TabID: 2})
	mClock.Advance(time.Minute)
	require.NoError(t, tr.Suspend())

	batches := sender.sent()
	require.Len(t, batches, 1)
	visits := decodeVisits(t, batches[0])
	require.Len(t, visits, 1, "only the non-excluded target produces a visit")
	assert.Equal(t, "https://ok.example/", visits[0].URL)
}

func TestTracker_SubMinimumIntervalDiscarded(t *testing.T) {
	tr, sender, mClock := newTestTracker(t)

	tr.TargetSwitch(Target{URL: "https://blink.example/", TabID: 1})
	mClock.Advance(300 * time.Millisecond)
	tr.TargetSwitch(Target{URL: "https://stay.example/", TabID: 2})
	mClock.Advance(10 * time.Second)
	require.NoError(t, tr.Suspend())

	batches := sender.sent()
	require.Len(t, batches, 1)
	visits := decodeVisits(t, batches[0])
	require.Len(t, visits, 1)
	assert.Equal(t, "https://stay.example/", visits[0].URL)
}

// A session that goes idle mid-visit is cut at the idle signal, and the time
// between going idle and returning to active is credited to nobody.
func TestTracker_IdleCutsInterval(t *testing.T) {
	tr, sender, mClock := newTestTracker(t)

	tr.TargetSwitch(Target{URL: "https://doc.example/", Title: "Doc", TabID: 7})
	mClock.Advance(125 * time.Second)
	tr.IdleStateChange(IdleIdle)
	assert.Equal(t, StatePaused, tr.State())

	mClock.Advance(70 * time.Second)
	tr.IdleStateChange(IdleActive)
	assert.Equal(t, StateTracking, tr.State())

	mClock.Advance(60 * time.Second)
	tr.TargetSwitch(Target{URL: "https://next.example/", TabID: 8})
	require.NoError(t, tr.Flush())

	batches := sender.sent()
	require.Len(t, batches, 1)
	visits := decodeVisits(t, batches[0])
	require.Len(t, visits, 2)

	assert.Equal(t, int64(125), visits[0].DurationSeconds)
	assert.True(t, visits[0].IsActive)
	assert.Equal(t, int64(60), visits[1].DurationSeconds, "idle gap not credited")
	assert.Equal(t, "https://doc.example/", visits[1].URL)

	var total int64
	for _, v := range visits {
		total += v.DurationSeconds
	}
	assert.LessOrEqual(t, total, int64(255), "no double counting across the idle gap")
}

func TestTracker_LockBehavesLikeIdle(t *testing.T) {
	tr, _, mClock := newTestTracker(t)

	tr.TargetSwitch(Target{URL: "https://a.example/", TabID: 1})
	mClock.Advance(10 * time.Second)
	tr.IdleStateChange(IdleLocked)
	assert.Equal(t, StatePaused, tr.State())

	// A switch while locked opens the new interval paused.
	tr.TargetSwitch(Target{URL: "https://b.example/", TabID: 2})
	assert.Equal(t, StatePaused, tr.State())
}

func TestTracker_VisibilityTogglesActiveFlag(t *testing.T) {
	tr, sender, mClock := newTestTracker(t)

	tr.TargetSwitch(Target{URL: "https://bg.example/", TabID: 1})
	tr.VisibilityChange(true)
	mClock.Advance(20 * time.Second)
	require.NoError(t, tr.Suspend())

	visits := decodeVisits(t, sender.sent()[0])
	require.Len(t, visits, 1)
	assert.False(t, visits[0].IsActive)
	assert.Equal(t, int64(20), visits[0].DurationSeconds)
	assert.Equal(t, int64(0), visits[0].ActiveSeconds)
}

func TestTracker_LongOpenIntervalSplits(t *testing.T) {
	tr, sender, mClock := newTestTracker(t)
	ctx := testContext(t)

	trap := mClock.Trap().TickerFunc("flush")
	defer trap.Close()

	done := make(chan error, 1)
	runCtx, cancel := context.WithCancel(ctx)
	go func() { done <- tr.Run(runCtx) }()
	trap.MustWait(ctx).MustRelease(ctx)

	tr.TargetSwitch(Target{URL: "https://marathon.example/", TabID: 1})

	// Eleven flush ticks carry the open interval past the 5 minute ceiling.
	for i := 0; i < 11; i++ {
		mClock.Advance(30 * time.Second).MustWait(ctx)
	}

	batches := sender.sent()
	require.NotEmpty(t, batches)
	var visits []wire.Visit
	for _, b := range batches {
		visits = append(visits, decodeVisits(t, b)...)
	}
	require.Len(t, visits, 1)
	assert.Equal(t, int64(300), visits[0].DurationSeconds)
	assert.Equal(t, "https://marathon.example/", visits[0].URL)

	cancel()
	require.NoError(t, <-done)
}

func TestTracker_FlushTimerDrainsQueue(t *testing.T) {
	tr, sender, mClock := newTestTracker(t)
	ctx := testContext(t)

	trap := mClock.Trap().TickerFunc("flush")
	defer trap.Close()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- tr.Run(runCtx) }()
	trap.MustWait(ctx).MustRelease(ctx)

	tr.SearchPerformed("felted wool care", "google")
	tr.SearchClicked("https://wool.example/care", "Care Guide", 1)

	mClock.Advance(30 * time.Second).MustWait(ctx)

	batches := sender.sent()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, wire.KindSearchQuery, batches[0][0].Kind)
	assert.Equal(t, wire.KindSearchClick, batches[0][1].Kind)

	cancel()
	require.NoError(t, <-done)
}

// A failed send puts the batch back at the head of the queue, so a later
// flush delivers everything in the original order.
func TestTracker_FailedSendPreservesOrder(t *testing.T) {
	tr, sender, mClock := newTestTracker(t)

	tr.SearchPerformed("first", "google")
	mClock.Advance(time.Second)
	tr.SearchPerformed("second", "google")

	sender.setFail(true)
	require.Error(t, tr.Flush())
	assert.Equal(t, 2, tr.QueueLen())

	mClock.Advance(time.Second)
	tr.SearchPerformed("third", "google")

	sender.setFail(false)
	require.NoError(t, tr.Flush())

	batches := sender.sent()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)

	var queries []string
	for _, item := range batches[0] {
		var q wire.SearchQuery
		require.NoError(t, item.DecodePayload(&q))
		queries = append(queries, q.Query)
	}
	assert.Equal(t, []string{"first", "second", "third"}, queries)
}

func TestTracker_DisabledDropsEvents(t *testing.T) {
	tr, sender, mClock := newTestTracker(t)

	tr.TargetSwitch(Target{URL: "https://a.example/", TabID: 1})
	mClock.Advance(10 * time.Second)

	tr.SetTrackingEnabled(false)
	assert.Equal(t, StateIdle, tr.State(), "disable discards the open interval")

	tr.TargetSwitch(Target{URL: "https://b.example/", TabID: 2})
	tr.SearchPerformed("hidden", "google")
	require.NoError(t, tr.Flush())
	assert.Empty(t, sender.sent())

	tr.SetTrackingEnabled(true)
	tr.TargetSwitch(Target{URL: "https://c.example/", TabID: 3})
	mClock.Advance(5 * time.Second)
	require.NoError(t, tr.Suspend())

	visits := decodeVisits(t, sender.sent()[0])
	require.Len(t, visits, 1)
	assert.Equal(t, "https://c.example/", visits[0].URL)
}

func TestTracker_SuspendFlushesSynchronously(t *testing.T) {
	tr, sender, mClock := newTestTracker(t)

	tr.TargetSwitch(Target{URL: "https://last.example/", TabID: 1})
	mClock.Advance(15 * time.Second)

	require.NoError(t, tr.Suspend())
	assert.Equal(t, StateIdle, tr.State())
	assert.Zero(t, tr.QueueLen())

	visits := decodeVisits(t, sender.sent()[0])
	require.Len(t, visits, 1)
	assert.Equal(t, int64(15), visits[0].DurationSeconds)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
