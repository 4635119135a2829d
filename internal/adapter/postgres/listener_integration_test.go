package postgres

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pingItem = domain.NewItem{
	Kind:            domain.KindText,
	Payload:         json.RawMessage(`{"text":"ping"}`),
	DurationSeconds: 10,
}

func TestListener_FiresOnMutation(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewItemRepo(pool)

	listener := NewListener(pool, clockwork.NewRealClock())
	var fired atomic.Int32
	unregister := listener.OnChange(func() { fired.Add(1) })
	defer unregister()

	listener.Start(context.Background())
	defer listener.Stop()

	// LISTEN is issued asynchronously; keep writing until a notification lands.
	require.Eventually(t, func() bool {
		_, _ = repo.Create(context.Background(), pingItem)
		return fired.Load() > 0
	}, 5*time.Second, 100*time.Millisecond)
}

func TestListener_UnregisteredHandlerNotCalled(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewItemRepo(pool)

	listener := NewListener(pool, clockwork.NewRealClock())
	var kept, removed atomic.Int32
	defer listener.OnChange(func() { kept.Add(1) })()
	listener.OnChange(func() { removed.Add(1) })()

	listener.Start(context.Background())
	defer listener.Stop()

	require.Eventually(t, func() bool {
		_, _ = repo.Create(context.Background(), pingItem)
		return kept.Load() > 0
	}, 5*time.Second, 100*time.Millisecond)
	assert.Zero(t, removed.Load())
}

func TestListener_ReconnectsAndCatchesUp(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	listener := NewListener(pool, clockwork.NewRealClock(), WithReconnectDelay(50*time.Millisecond))
	var fired atomic.Int32
	defer listener.OnChange(func() { fired.Add(1) })()

	listener.Start(ctx)
	defer listener.Stop()

	// Kill the listening backend; the listener must reconnect and fire once.
	require.Eventually(t, func() bool {
		var n int
		err := pool.QueryRow(ctx,
			`SELECT count(pg_terminate_backend(pid)) FROM pg_stat_activity WHERE query = 'LISTEN `+ChangeChannel+`'`).Scan(&n)
		return err == nil && n > 0
	}, 5*time.Second, 50*time.Millisecond)

	assert.Eventually(t, func() bool { return fired.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
}

func TestListener_StopIsIdempotent(t *testing.T) {
	pool := setupTestDB(t)

	listener := NewListener(pool, clockwork.NewRealClock())
	listener.Start(context.Background())
	listener.Start(context.Background())
	listener.Stop()
	listener.Stop()
}
