package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/0x-mperego/unimec-display/internal/changefeed"
	"github.com/0x-mperego/unimec-display/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// ChangeChannel carries playlist change signals between server processes.
const ChangeChannel = "playlist:changed"

// ChangeFeed is a change feed over Redis pub/sub. Writers call
// PublishChanged after a mutation; every process running Start fires its
// handlers when the message arrives, the writer included.
type ChangeFeed struct {
	*changefeed.Dispatcher

	rdb    *goredis.Client
	origin string
}

var (
	_ domain.ChangeFeed      = (*ChangeFeed)(nil)
	_ domain.ChangePublisher = (*ChangeFeed)(nil)
)

// NewChangeFeed creates a feed. origin identifies this process in the
// published payload and in logs.
func NewChangeFeed(rdb *goredis.Client, origin string) *ChangeFeed {
	return &ChangeFeed{
		Dispatcher: changefeed.NewDispatcher(),
		rdb:        rdb,
		origin:     origin,
	}
}

// Start subscribes and dispatches until ctx is cancelled.
func (f *ChangeFeed) Start(ctx context.Context) {
	pubsub := f.rdb.Subscribe(ctx, ChangeChannel)
	defer func() { _ = pubsub.Close() }()

	slog.Info("Subscribed to playlist changes", "channel", ChangeChannel)

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok || msg == nil {
				return
			}
			f.handleMessage(msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (f *ChangeFeed) handleMessage(origin string) {
	slog.Debug("Playlist change received via pub/sub", "origin", origin)
	f.Fire()
}

func (f *ChangeFeed) PublishChanged(ctx context.Context) error {
	if err := f.rdb.Publish(ctx, ChangeChannel, f.origin).Err(); err != nil {
		return fmt.Errorf("failed to publish playlist change: %w", err)
	}
	return nil
}
