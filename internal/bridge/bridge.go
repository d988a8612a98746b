// Package bridge maintains the capture side's connection to the ingestion
// host. Outbound messages are fire-and-forget; the one request that expects
// an answer, get_stats, is correlated against the host's command echo. The
// connection is supervised: dial failures retry on a constant interval and a
// lost live connection is re-established after a short wait.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/wire"
)

var (
	// ErrNotConnected: no live connection; the caller keeps its items queued.
	ErrNotConnected = errors.New("bridge: not connected")
	// ErrBusy: a stats request is already in flight.
	ErrBusy = errors.New("bridge: stats request already in flight")
	// ErrClosed: the connection went down while a reply was pending.
	ErrClosed = errors.New("bridge: connection closed")
)

// Dialer establishes one connection to the host. The returned conn carries
// length-prefixed frames in both directions.
type Dialer interface {
	Dial(ctx context.Context) (io.ReadWriteCloser, error)
}

// Config holds the bridge's reconnect timing.
type Config struct {
	// DialRetry is the interval between failed dial attempts.
	DialRetry time.Duration
	// ReconnectWait is the pause before re-dialing a lost live connection.
	ReconnectWait time.Duration
	// ResumeAppTracking re-sends start_app_tracking after a reconnect so the
	// host's window sampler survives a host restart.
	ResumeAppTracking bool
}

// FromTransportConfig converts the YAML transport section.
func FromTransportConfig(c config.TransportConfig) Config {
	return Config{
		DialRetry:         time.Duration(c.DialRetrySeconds) * time.Second,
		ReconnectWait:     time.Duration(c.ReconnectWaitSeconds) * time.Second,
		ResumeAppTracking: true,
	}
}

// Bridge supervises the connection and multiplexes sends from any goroutine
// onto it.
type Bridge struct {
	dialer Dialer
	cfg    Config
	log    *slog.Logger

	mu       sync.Mutex
	conn     io.ReadWriteCloser
	statsCh  chan *wire.Response
	restarts int

	writeMu sync.Mutex
}

func New(dialer Dialer, cfg Config, log *slog.Logger) *Bridge {
	return &Bridge{dialer: dialer, cfg: cfg, log: log}
}

// Restarts reports how many times the connection has been re-established.
func (b *Bridge) Restarts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.restarts
}

// Connected reports whether a live connection exists.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Run dials, reads responses, and reconnects until ctx is canceled. It
// returns nil on cancellation.
func (b *Bridge) Run(ctx context.Context) error {
	restarted := false
	for {
		conn, err := b.dial(ctx)
		if err != nil {
			return nil
		}

		b.attach(conn, restarted)
		b.log.Info("connected to host", "restarts", b.Restarts())

		// Cancellation must unblock the read below.
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		b.readLoop(conn)
		stop()
		b.detach(conn)

		if ctx.Err() != nil {
			return nil
		}
		restarted = true
		b.log.Warn("host connection lost, reconnecting",
			"wait", b.cfg.ReconnectWait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(b.cfg.ReconnectWait):
		}
	}
}

// dial retries on a constant interval until it succeeds or ctx is canceled.
func (b *Bridge) dial(ctx context.Context) (io.ReadWriteCloser, error) {
	var conn io.ReadWriteCloser
	op := func() error {
		c, err := b.dialer.Dial(ctx)
		if err != nil {
			b.log.Debug("dial failed", "err", err)
			return err
		}
		conn = c
		return nil
	}
	bo := backoff.WithContext(backoff.NewConstantBackOff(b.cfg.DialRetry), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return conn, nil
}

func (b *Bridge) attach(conn io.ReadWriteCloser, restarted bool) {
	b.mu.Lock()
	b.conn = conn
	if restarted {
		b.restarts++
	}
	b.mu.Unlock()

	if restarted && b.cfg.ResumeAppTracking {
		if err := b.Send(&wire.Message{Command: wire.CmdStartAppTracking}); err != nil {
			b.log.Warn("resume app tracking after reconnect", "err", err)
		}
	}
}

// detach clears the connection and fails any pending stats waiter.
func (b *Bridge) detach(conn io.ReadWriteCloser) {
	conn.Close()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == conn {
		b.conn = nil
	}
	if b.statsCh != nil {
		close(b.statsCh)
		b.statsCh = nil
	}
}

// readLoop consumes responses until the connection dies. A clean EOF means
// the host shut down.
func (b *Bridge) readLoop(conn io.Reader) {
	for {
		resp, err := wire.DecodeResponse(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				b.log.Warn("read response", "err", err)
			}
			return
		}
		b.dispatch(resp)
	}
}

func (b *Bridge) dispatch(resp *wire.Response) {
	if resp.Command == wire.CmdGetStats {
		b.mu.Lock()
		ch := b.statsCh
		b.statsCh = nil
		b.mu.Unlock()
		if ch != nil {
			ch <- resp
		}
		return
	}
	if resp.Status == wire.StatusError {
		b.log.Warn("host reported error",
			"command", string(resp.Command), "message", resp.Message)
	}
}

// Send writes one message to the host. A write failure tears the connection
// down and returns the error; the caller's items were not delivered.
func (b *Bridge) Send(msg *wire.Message) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	b.writeMu.Lock()
	err := wire.Encode(conn, msg)
	b.writeMu.Unlock()
	if err != nil {
		conn.Close()
		return fmt.Errorf("send %s: %w", msg.Command, err)
	}
	return nil
}

// GetStats sends get_stats and waits for the host's reply. At most one
// request may be outstanding; a second concurrent call gets ErrBusy.
func (b *Bridge) GetStats(ctx context.Context) (*wire.Stats, error) {
	b.mu.Lock()
	if b.conn == nil {
		b.mu.Unlock()
		return nil, ErrNotConnected
	}
	if b.statsCh != nil {
		b.mu.Unlock()
		return nil, ErrBusy
	}
	ch := make(chan *wire.Response, 1)
	b.statsCh = ch
	b.mu.Unlock()

	if err := b.Send(&wire.Message{Command: wire.CmdGetStats}); err != nil {
		b.clearStatsWaiter(ch)
		return nil, err
	}

	select {
	case <-ctx.Done():
		b.clearStatsWaiter(ch)
		return nil, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if resp.Status != wire.StatusSuccess {
			return nil, fmt.Errorf("get_stats: %s", resp.Message)
		}
		if resp.Stats == nil {
			return nil, errors.New("get_stats: reply carried no stats")
		}
		return resp.Stats, nil
	}
}

func (b *Bridge) clearStatsWaiter(ch chan *wire.Response) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.statsCh == ch {
		b.statsCh = nil
	}
}
