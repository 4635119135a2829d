package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/0x-mperego/unimec-display/internal/domain"
	apperrors "github.com/0x-mperego/unimec-display/internal/platform/errors"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type createContentRequest struct {
	Kind            string          `json:"kind" validate:"required,oneof=image text"`
	Payload         json.RawMessage `json:"payload" validate:"required"`
	DurationSeconds int             `json:"durationSeconds" validate:"required,gte=5,lte=60"`
	OrderIndex      *int            `json:"orderIndex" validate:"omitempty,gte=0"`
}

type updateContentRequest struct {
	DurationSeconds *int            `json:"durationSeconds" validate:"omitempty,gte=5,lte=60"`
	Payload         json.RawMessage `json:"payload"`
}

type reorderRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleListContents(c echo.Context) error {
	items, err := s.app.List(c.Request().Context())
	if err != nil {
		return err
	}
	if items == nil {
		items = []domain.PlaylistItem{}
	}

	if err := c.JSON(http.StatusOK, items); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleCreateContent(c echo.Context) error {
	var req createContentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	kind, err := domain.ParseItemKind(req.Kind)
	if err != nil {
		return err
	}

	item, err := s.app.Create(c.Request().Context(), domain.NewItem{
		Kind:            kind,
		Payload:         nullAsEmpty(req.Payload),
		DurationSeconds: req.DurationSeconds,
		OrderIndex:      req.OrderIndex,
	})
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusCreated, item); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleUpdateContent(c echo.Context) error {
	id, err := parseContentID(c)
	if err != nil {
		return err
	}

	var req updateContentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	item, err := s.app.Update(c.Request().Context(), id, domain.ItemPatch{
		DurationSeconds: req.DurationSeconds,
		Payload:         nullAsEmpty(req.Payload),
	})
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, item); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDeleteContent(c echo.Context) error {
	id, err := parseContentID(c)
	if err != nil {
		return err
	}

	if err := s.app.Delete(c.Request().Context(), id); err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, messageResponse{Message: "content deleted"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDuplicateContent(c echo.Context) error {
	id, err := parseContentID(c)
	if err != nil {
		return err
	}

	item, err := s.app.Duplicate(c.Request().Context(), id)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusCreated, item); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleReorderContent(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseContentID(c)
	if err != nil {
		return err
	}

	var req reorderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	dir, err := domain.ParseDirection(req.Direction)
	if err != nil {
		return err
	}

	item, err := s.app.Reorder(ctx, id, dir)
	if err != nil {
		return err
	}

	slog.DebugContext(ctx, "Content reordered", "item_id", id, "direction", dir, "order_index", item.OrderIndex)

	if err := c.JSON(http.StatusOK, item); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func parseContentID(c echo.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid content id").WithContext("id", raw)
	}
	return id, nil
}

// nullAsEmpty treats an explicit JSON null like an omitted payload.
func nullAsEmpty(raw json.RawMessage) json.RawMessage {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}
