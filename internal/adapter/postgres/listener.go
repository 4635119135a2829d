package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/0x-mperego/unimec-display/internal/adapter/metrics"
	"github.com/0x-mperego/unimec-display/internal/changefeed"
	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

const (
	// ChangeChannel is the NOTIFY channel the playlist_items trigger signals on.
	ChangeChannel = "playlist_changed"

	defaultReconnectDelay = 2 * time.Second
)

// Listener turns database notifications on ChangeChannel into change
// events. It holds one connection outside the pool for as long as it runs.
type Listener struct {
	*changefeed.Dispatcher

	pool           *pgxpool.Pool
	clock          clockwork.Clock
	reconnectDelay time.Duration
	metrics        *metrics.DBMetrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ domain.ChangeFeed = (*Listener)(nil)

type ListenerOption func(*Listener)

func WithReconnectDelay(d time.Duration) ListenerOption {
	return func(l *Listener) { l.reconnectDelay = d }
}

func WithListenerMetrics(m *metrics.DBMetrics) ListenerOption {
	return func(l *Listener) { l.metrics = m }
}

func NewListener(pool *pgxpool.Pool, clock clockwork.Clock, opts ...ListenerOption) *Listener {
	l := &Listener{
		Dispatcher:     changefeed.NewDispatcher(),
		pool:           pool,
		clock:          clock,
		reconnectDelay: defaultReconnectDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start begins listening in the background. Calling Start on a running
// listener does nothing.
func (l *Listener) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
}

// Stop ends listening and waits for the connection to be closed.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *Listener) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	reconnect := false
	for {
		err := l.listen(ctx, reconnect)
		if ctx.Err() != nil {
			return
		}

		slog.Warn("Change listener disconnected, reconnecting", "error", err, "delay", l.reconnectDelay)
		select {
		case <-ctx.Done():
			return
		case <-l.clock.After(l.reconnectDelay):
		}
		reconnect = true
	}
}

// listen runs one LISTEN session. After a reconnect it fires once, since
// changes made while disconnected produced no notification here.
func (l *Listener) listen(ctx context.Context, reconnect bool) error {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listener connection: %w", err)
	}
	conn := pooled.Hijack()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ChangeChannel, err)
	}
	slog.Info("Listening for playlist changes", "channel", ChangeChannel)

	if reconnect {
		l.metrics.IncReconnect()
		l.Fire()
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.metrics.IncNotification()
		slog.Debug("Playlist change notification", "op", n.Payload)
		l.Fire()
	}
}
