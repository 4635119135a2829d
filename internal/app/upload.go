package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/google/uuid"
)

// UploadRequest is an image file plus the item settings it is created with.
type UploadRequest struct {
	FileName        string
	ContentType     string
	Size            int64
	Body            io.Reader
	DurationSeconds int
	OrderIndex      *int
}

// UploadImage stores the file and creates an image item pointing at it.
// Every check runs before the file is stored; if the record cannot be
// created afterwards the stored file is removed again.
func (s *Service) UploadImage(ctx context.Context, req UploadRequest) (*domain.PlaylistItem, error) {
	ext, ok := domain.AllowedImageTypes[req.ContentType]
	if !ok {
		s.metrics.IncUpload("rejected")
		return nil, fmt.Errorf("%w: %q, only JPG and PNG are allowed", domain.ErrUnsupportedMediaType, req.ContentType)
	}
	if req.Size <= 0 {
		s.metrics.IncUpload("rejected")
		return nil, fmt.Errorf("%w: file is empty", domain.ErrInvalidPayload)
	}
	if req.Size > domain.MaxUploadBytes {
		s.metrics.IncUpload("rejected")
		return nil, fmt.Errorf("%w: %d bytes, limit is 10MB", domain.ErrFileTooLarge, req.Size)
	}
	if !domain.ValidDuration(req.DurationSeconds) {
		s.metrics.IncUpload("rejected")
		return nil, durationError(req.DurationSeconds)
	}

	count, err := s.items.Count(ctx)
	if err != nil {
		s.metrics.IncUpload("failed")
		return nil, storeUnavailable("failed to count playlist items", err)
	}
	if count >= domain.MaxItems {
		s.metrics.IncUpload("rejected")
		return nil, fmt.Errorf("%w: %d items maximum", domain.ErrCapacityReached, domain.MaxItems)
	}

	path := s.storagePath(ext)
	url, err := s.blobs.Put(ctx, path, req.ContentType, io.LimitReader(req.Body, domain.MaxUploadBytes))
	if err != nil {
		s.metrics.IncUpload("failed")
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	payload, err := json.Marshal(domain.ImagePayload{
		URL:         url,
		FileName:    req.FileName,
		FileSize:    req.Size,
		MimeType:    req.ContentType,
		StoragePath: path,
	})
	if err == nil {
		var item *domain.PlaylistItem
		item, err = s.items.Create(ctx, domain.NewItem{
			Kind:            domain.KindImage,
			Payload:         payload,
			DurationSeconds: req.DurationSeconds,
			OrderIndex:      req.OrderIndex,
		})
		if err == nil {
			s.metrics.IncUpload("stored")
			slog.InfoContext(ctx, "Image uploaded", "item_id", item.ID, "storage_path", path, "size", req.Size)
			s.changed(ctx, "upload")
			return item, nil
		}
	}

	s.metrics.IncUpload("failed")
	if rmErr := s.blobs.Remove(context.WithoutCancel(ctx), path); rmErr != nil {
		slog.ErrorContext(ctx, "Failed to remove orphaned image", "storage_path", path, "error", rmErr)
	}
	return nil, err
}

// storagePath names a new upload images/<unix-millis>-<random>.<ext>.
func (s *Service) storagePath(ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return fmt.Sprintf("images/%d-%s.%s", s.clock.Now().UnixMilli(), suffix, ext)
}
