package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/0x-mperego/unimec-display/internal/app"
	apperrors "github.com/0x-mperego/unimec-display/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

// handleUploadImage accepts multipart fields "file", "duration" and an
// optional "orderIndex".
func (s *Server) handleUploadImage(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return apperrors.ValidationError("file is required")
	}

	duration, err := strconv.Atoi(c.FormValue("duration"))
	if err != nil {
		return apperrors.ValidationError("duration must be a number").WithContext("duration", c.FormValue("duration"))
	}

	var orderIndex *int
	if raw := c.FormValue("orderIndex"); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 0 {
			return apperrors.ValidationError("orderIndex must be a non-negative number").WithContext("orderIndex", raw)
		}
		orderIndex = &idx
	}

	file, err := fh.Open()
	if err != nil {
		return apperrors.ValidationError("failed to read uploaded file")
	}
	defer func() { _ = file.Close() }()

	item, err := s.app.UploadImage(c.Request().Context(), app.UploadRequest{
		FileName:        fh.Filename,
		ContentType:     fh.Header.Get("Content-Type"),
		Size:            fh.Size,
		Body:            file,
		DurationSeconds: duration,
		OrderIndex:      orderIndex,
	})
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusCreated, item); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
