package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/0x-mperego/unimec-display/internal/adapter/metrics"
	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const publishTimeout = 2 * time.Second

// Service is the application layer for the playlist.
type Service struct {
	items     domain.PlaylistRepository
	blobs     domain.BlobStore
	publisher domain.ChangePublisher
	metrics   *metrics.PlaylistMetrics
	clock     clockwork.Clock
	validate  *validator.Validate
}

type Option func(*Service)

// WithPublisher sets the publisher called after every successful mutation.
// Without one, the store's own change feed is relied upon.
func WithPublisher(p domain.ChangePublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.PlaylistMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(items domain.PlaylistRepository, blobs domain.BlobStore, clock clockwork.Clock, opts ...Option) *Service {
	s := &Service{
		items:    items,
		blobs:    blobs,
		clock:    clock,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the live items sorted by order index.
func (s *Service) List(ctx context.Context) ([]domain.PlaylistItem, error) {
	return s.items.ListOrdered(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.PlaylistItem, error) {
	return s.items.Get(ctx, id)
}

// Create adds an item. Without an explicit order index it is appended.
func (s *Service) Create(ctx context.Context, item domain.NewItem) (*domain.PlaylistItem, error) {
	if !domain.ValidDuration(item.DurationSeconds) {
		return nil, durationError(item.DurationSeconds)
	}
	if item.OrderIndex != nil && *item.OrderIndex < 0 {
		return nil, fmt.Errorf("%w: order index must not be negative", domain.ErrInvalidPayload)
	}
	if err := s.validatePayload(item.Kind, item.Payload); err != nil {
		return nil, err
	}

	created, err := s.items.Create(ctx, item)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Playlist item created", "item_id", created.ID, "kind", created.Kind, "order_index", created.OrderIndex)
	s.changed(ctx, "create")
	return created, nil
}

// Update applies a partial content change. It always refreshes updatedAt.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch domain.ItemPatch) (*domain.PlaylistItem, error) {
	if patch.Empty() {
		return nil, domain.ErrEmptyPatch
	}
	if patch.DurationSeconds != nil && !domain.ValidDuration(*patch.DurationSeconds) {
		return nil, durationError(*patch.DurationSeconds)
	}

	if len(patch.Payload) > 0 {
		current, err := s.items.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.validatePayload(current.Kind, patch.Payload); err != nil {
			return nil, err
		}
	}

	updated, err := s.items.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Playlist item updated", "item_id", id)
	s.changed(ctx, "update")
	return updated, nil
}

// Delete removes the record. The stored image file is removed afterwards
// unless another item still shows it; a failed cleanup is logged and not
// returned.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.items.Delete(ctx, id)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Playlist item deleted", "item_id", id, "kind", deleted.Kind)
	s.changed(ctx, "delete")

	if deleted.Kind == domain.KindImage {
		s.removeImageBlob(ctx, deleted)
	}
	return nil
}

// Duplicate appends a copy of an item with the same kind, payload and
// duration. Image copies share the stored file with their source.
func (s *Service) Duplicate(ctx context.Context, id uuid.UUID) (*domain.PlaylistItem, error) {
	src, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	dup, err := s.items.Create(ctx, domain.NewItem{
		Kind:            src.Kind,
		Payload:         src.Payload,
		DurationSeconds: src.DurationSeconds,
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Playlist item duplicated", "source_id", id, "item_id", dup.ID)
	s.changed(ctx, "duplicate")
	return dup, nil
}

func (s *Service) removeImageBlob(ctx context.Context, item *domain.PlaylistItem) {
	img, err := item.ImagePayload()
	if err != nil || img.StoragePath == "" {
		slog.WarnContext(ctx, "Image item has no storage path, skipping cleanup", "item_id", item.ID)
		return
	}

	inUse, err := s.items.StoragePathInUse(ctx, img.StoragePath)
	switch {
	case err != nil:
		slog.WarnContext(ctx, "Could not check image file references, keeping file", "item_id", item.ID, "storage_path", img.StoragePath, "error", err)
		return
	case inUse:
		slog.InfoContext(ctx, "Image file still shown by another item, keeping it", "item_id", item.ID, "storage_path", img.StoragePath)
		return
	}
	if err := s.blobs.Remove(ctx, img.StoragePath); err != nil {
		slog.WarnContext(ctx, "Failed to remove image file", "item_id", item.ID, "storage_path", img.StoragePath, "error", err)
	}
}

// changed records a mutation and announces it. Publishing is fire-and-forget
// relative to the write that already succeeded.
func (s *Service) changed(ctx context.Context, op string) {
	s.metrics.IncMutation(op)
	if s.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishChanged(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to publish playlist change", "op", op, "error", err)
	}
}

func durationError(seconds int) error {
	return fmt.Errorf("%w: %d not in [%d, %d]", domain.ErrInvalidDuration, seconds, domain.MinDurationSeconds, domain.MaxDurationSeconds)
}

// IsValidation reports whether err is an input error rejected before any
// mutation.
func IsValidation(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidDirection,
		domain.ErrInvalidDuration,
		domain.ErrInvalidKind,
		domain.ErrInvalidPayload,
		domain.ErrEmptyPatch,
		domain.ErrCapacityReached,
		domain.ErrOrderIndexTaken,
		domain.ErrUnsupportedMediaType,
		domain.ErrFileTooLarge,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
