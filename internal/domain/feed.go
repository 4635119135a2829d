package domain

import (
	"context"
	"io"
	"time"
)

const SnapshotKind = "contents_updated"

// Snapshot is the frame pushed to display clients: always the full ordered
// playlist, never a delta.
type Snapshot struct {
	Kind      string         `json:"kind"`
	Items     []PlaylistItem `json:"items"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewSnapshot(items []PlaylistItem, now time.Time) Snapshot {
	if items == nil {
		items = []PlaylistItem{}
	}
	return Snapshot{Kind: SnapshotKind, Items: items, Timestamp: now}
}

// ChangeFeed delivers a signal whenever the stored playlist changes.
// OnChange returns a func that removes the handler again.
type ChangeFeed interface {
	OnChange(handler func()) (unregister func())
}

// ChangePublisher announces a playlist change on feeds that are not driven
// by the store itself.
type ChangePublisher interface {
	PublishChanged(ctx context.Context) error
}

// BlobStore keeps uploaded image files.
type BlobStore interface {
	// Put stores r under path and returns its public URL.
	Put(ctx context.Context, path, contentType string, r io.Reader) (string, error)
	Remove(ctx context.Context, path string) error
}
