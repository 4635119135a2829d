package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/google/uuid"
)

const (
	reorderMoved    = "moved"
	reorderNoop     = "noop"
	reorderNotFound = "not_found"
	reorderConflict = "conflict"
	reorderPartial  = "partial"
	reorderError    = "error"
)

// Reorder moves an item one rank up or down by swapping order indexes with
// its neighbour. Only those two rows are written. Moving past either end is
// a no-op that returns the item unchanged.
func (s *Service) Reorder(ctx context.Context, id uuid.UUID, dir domain.Direction) (*domain.PlaylistItem, error) {
	item, result, err := s.reorder(ctx, id, dir)
	s.metrics.IncReorder(result)
	if err != nil {
		return nil, err
	}
	if result == reorderMoved {
		s.changed(ctx, "reorder")
	}
	return item, nil
}

func (s *Service) reorder(ctx context.Context, id uuid.UUID, dir domain.Direction) (*domain.PlaylistItem, string, error) {
	current, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, classifyReorderErr(err), err
	}

	list, err := s.items.ListOrdered(ctx)
	if err != nil {
		return nil, reorderError, storeUnavailable("failed to load playlist", err)
	}

	pos := indexOf(list, id)
	if pos < 0 {
		return nil, reorderNotFound, domain.ErrItemNotFound
	}

	target := pos - 1
	if dir == domain.DirectionDown {
		target = pos + 1
	}
	if target < 0 || target >= len(list) {
		return current, reorderNoop, nil
	}

	moving, neighbour := list[pos], list[target]
	a := domain.OrderSlot{ID: moving.ID, OrderIndex: moving.OrderIndex}
	b := domain.OrderSlot{ID: neighbour.ID, OrderIndex: neighbour.OrderIndex}

	if err := s.items.SwapOrder(ctx, a, b); err != nil {
		return nil, classifyReorderErr(err), err
	}

	moved, err := s.verifySwap(ctx, a, b)
	if err != nil {
		slog.ErrorContext(ctx, "Reorder could not be confirmed",
			"item_id", a.ID, "neighbour_id", b.ID, "direction", dir.String(), "error", err)
		return nil, reorderPartial, err
	}

	slog.InfoContext(ctx, "Playlist item reordered",
		"item_id", a.ID, "direction", dir.String(), "from", a.OrderIndex, "to", moved.OrderIndex)
	return moved, reorderMoved, nil
}

// verifySwap re-reads both rows and checks each holds the other's previous
// index. It returns the refreshed moving item.
func (s *Service) verifySwap(ctx context.Context, a, b domain.OrderSlot) (*domain.PlaylistItem, error) {
	gotA, err := s.items.Get(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: re-read of %s failed: %w", domain.ErrPartialReorder, a.ID, err)
	}
	gotB, err := s.items.Get(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: re-read of %s failed: %w", domain.ErrPartialReorder, b.ID, err)
	}

	if gotA.OrderIndex != b.OrderIndex || gotB.OrderIndex != a.OrderIndex {
		return nil, fmt.Errorf("%w: expected %s=%d and %s=%d, found %d and %d",
			domain.ErrPartialReorder, a.ID, b.OrderIndex, b.ID, a.OrderIndex, gotA.OrderIndex, gotB.OrderIndex)
	}
	return gotA, nil
}

func indexOf(list []domain.PlaylistItem, id uuid.UUID) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func classifyReorderErr(err error) string {
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		return reorderNotFound
	case errors.Is(err, domain.ErrReorderConflict):
		return reorderConflict
	case errors.Is(err, domain.ErrPartialReorder):
		return reorderPartial
	default:
		return reorderError
	}
}

func storeUnavailable(msg string, err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, domain.ErrStoreUnavailable, err)
}
