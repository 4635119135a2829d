package display

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/jonboulle/clockwork"
)

const DefaultRetryDelay = 5 * time.Second

// Stream is one open subscription to the server's playlist stream.
type Stream interface {
	// Recv blocks until the next snapshot arrives or the stream fails.
	Recv() (domain.Snapshot, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// Fetcher pulls the playlist once, used while the stream is down.
type Fetcher interface {
	Fetch(ctx context.Context) ([]domain.PlaylistItem, error)
}

// ConnectionManager keeps one stream open and feeds every snapshot to the
// sink. After a stream failure it waits a fixed delay, pulls the playlist
// once through the fetcher, and dials again. It retries forever. When the
// very first dial fails it also pulls right away.
type ConnectionManager struct {
	dialer     Dialer
	fetcher    Fetcher
	sink       func([]domain.PlaylistItem)
	clock      clockwork.Clock
	retryDelay time.Duration
	onStatus   func(connected bool)

	connected atomic.Bool
}

type ConnectionOption func(*ConnectionManager)

func WithRetryDelay(d time.Duration) ConnectionOption {
	return func(m *ConnectionManager) { m.retryDelay = d }
}

// WithOnStatus sets a callback run whenever the connected state flips.
func WithOnStatus(fn func(connected bool)) ConnectionOption {
	return func(m *ConnectionManager) { m.onStatus = fn }
}

func NewConnectionManager(dialer Dialer, fetcher Fetcher, sink func([]domain.PlaylistItem), clock clockwork.Clock, opts ...ConnectionOption) *ConnectionManager {
	m := &ConnectionManager{
		dialer:     dialer,
		fetcher:    fetcher,
		sink:       sink,
		clock:      clock,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *ConnectionManager) Connected() bool {
	return m.connected.Load()
}

// Run blocks until ctx is cancelled.
func (m *ConnectionManager) Run(ctx context.Context) {
	defer m.setConnected(false)

	for first := true; ; first = false {
		opened, err := m.session(ctx)
		m.setConnected(false)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("Playlist stream lost, retrying", "error", err, "retry_in", m.retryDelay)

		if first && !opened {
			// Server unreachable at startup: fill the screen now instead of
			// staying blank for a whole retry delay.
			m.pull(ctx)
		}

		select {
		case <-ctx.Done():
			return
		case <-m.clock.After(m.retryDelay):
		}

		m.pull(ctx)
	}
}

// session dials once and forwards snapshots until the stream ends. opened
// reports whether the dial succeeded.
func (m *ConnectionManager) session(ctx context.Context) (opened bool, err error) {
	stream, err := m.dialer.Dial(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = stream.Close() }()

	// Recv has no context; closing the stream unblocks it.
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	m.setConnected(true)
	slog.Info("Playlist stream connected")

	for {
		snap, err := stream.Recv()
		if err != nil {
			return true, err
		}
		m.sink(snap.Items)
	}
}

func (m *ConnectionManager) pull(ctx context.Context) {
	items, err := m.fetcher.Fetch(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("Fallback playlist pull failed", "error", err)
		}
		return
	}
	slog.Debug("Fallback playlist pull succeeded", "items", len(items))
	m.sink(items)
}

func (m *ConnectionManager) setConnected(v bool) {
	if m.connected.Swap(v) == v {
		return
	}
	if m.onStatus != nil {
		m.onStatus(v)
	}
}
