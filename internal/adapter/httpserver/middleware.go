package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/0x-mperego/unimec-display/internal/app"
	"github.com/0x-mperego/unimec-display/internal/broadcast"
	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/0x-mperego/unimec-display/internal/platform/correlation"
	apperrors "github.com/0x-mperego/unimec-display/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

// correlationMiddleware reuses a well-formed X-Request-ID from a proxy, or
// mints one, and echoes it on the response.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := correlation.Parse(c.Request().Header.Get(correlation.Header))
		if !ok {
			id = correlation.NewID()
		}
		c.Response().Header().Set(correlation.Header, id)
		c.SetRequest(c.Request().WithContext(correlation.WithID(c.Request().Context(), id)))
		return next(c)
	}
}

// errorMiddleware renders handler errors as JSON. Echo's own HTTP errors are
// left for httpErrorHandler so routing and body-limit failures keep their
// status codes.
func errorMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}
			return renderError(c, err)
		}
	}
}

func renderError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	apiErr := toAPIError(err)
	logAPIError(c, apiErr)
	if werr := c.JSON(apiErr.HTTPStatus(), apiErr.ToResponse()); werr != nil {
		return fmt.Errorf("failed to write error response: %w", werr)
	}
	return nil
}

// toAPIError resolves any error into the structured shape sent to clients.
// Structured errors pass through unchanged.
func toAPIError(err error) *apperrors.Error {
	var structured *apperrors.Error
	if errors.As(err, &structured) {
		return structured
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return fromHTTPError(httpErr)
	}

	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		return apperrors.NotFoundError("content not found")
	case errors.Is(err, domain.ErrOrderIndexTaken):
		return apperrors.ConflictError(domain.ErrOrderIndexTaken.Error())
	case errors.Is(err, domain.ErrReorderConflict):
		return apperrors.ConflictError("content changed concurrently, reload and retry")
	case app.IsValidation(err):
		return apperrors.ValidationError(err.Error())
	case errors.Is(err, domain.ErrPartialReorder):
		return apperrors.PartialReorderError("reorder could not be confirmed, reload the playlist", err)
	case errors.Is(err, domain.ErrStoreUnavailable):
		return apperrors.UnavailableError("content store unavailable", err)
	case errors.Is(err, broadcast.ErrHubStopped):
		return apperrors.UnavailableError("server is shutting down", err)
	case errors.Is(err, domain.ErrUnauthorized):
		return apperrors.UnauthorizedError("unauthorized")
	default:
		return apperrors.InternalError("internal server error", err)
	}
}

var httpStatusTypes = map[int]apperrors.ErrorType{
	http.StatusBadRequest:            apperrors.TypeValidation,
	http.StatusRequestEntityTooLarge: apperrors.TypeValidation,
	http.StatusUnsupportedMediaType:  apperrors.TypeValidation,
	http.StatusUnauthorized:          apperrors.TypeUnauthorized,
	http.StatusNotFound:              apperrors.TypeNotFound,
	http.StatusMethodNotAllowed:      apperrors.TypeNotFound,
	http.StatusConflict:              apperrors.TypeConflict,
	http.StatusTooManyRequests:       apperrors.TypeRateLimited,
	http.StatusServiceUnavailable:    apperrors.TypeUnavailable,
}

func fromHTTPError(httpErr *echo.HTTPError) *apperrors.Error {
	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok && msg != "" {
		message = msg
	}

	errType, ok := httpStatusTypes[httpErr.Code]
	if !ok {
		errType = apperrors.TypeInternal
	}

	return &apperrors.Error{
		Type:    errType,
		Message: message,
		Cause:   httpErr.Internal,
		Context: make(map[string]any),
	}
}

type logRule struct {
	level     slog.Level
	msg       string
	withCause bool
}

var logRules = map[apperrors.ErrorType]logRule{
	apperrors.TypeValidation:     {slog.LevelInfo, "Validation error", false},
	apperrors.TypeUnauthorized:   {slog.LevelInfo, "Unauthorized", false},
	apperrors.TypeNotFound:       {slog.LevelInfo, "Not found", false},
	apperrors.TypeConflict:       {slog.LevelWarn, "Conflict", false},
	apperrors.TypeRateLimited:    {slog.LevelWarn, "Rate limited", false},
	apperrors.TypePartialReorder: {slog.LevelWarn, "Partial reorder", true},
	apperrors.TypeUnavailable:    {slog.LevelError, "Store unavailable", true},
	apperrors.TypeInternal:       {slog.LevelError, "Internal error", true},
}

func logAPIError(c echo.Context, err *apperrors.Error) {
	rule, ok := logRules[err.Type]
	if !ok {
		rule = logRule{slog.LevelError, "Unknown error type", true}
	}

	attrs := make([]slog.Attr, 0, len(err.Context)+6)
	attrs = append(attrs,
		slog.String("error_type", string(err.Type)),
		slog.String("message", err.Message),
		slog.String("path", c.Request().URL.Path),
		slog.String("method", c.Request().Method),
		slog.Int("status", err.HTTPStatus()),
	)
	for k, v := range err.Context {
		attrs = append(attrs, slog.Any(k, v))
	}
	if rule.withCause && err.Cause != nil {
		attrs = append(attrs, slog.Any("cause", err.Cause))
	}

	slog.Default().LogAttrs(c.Request().Context(), rule.level, rule.msg, attrs...)
}

// httpErrorHandler renders errors that escape the middleware chain, such as
// unknown routes or oversized bodies, in the same JSON shape.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	apiErr := toAPIError(err)
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.HTTPStatus())
		return
	}
	_ = c.JSON(apiErr.HTTPStatus(), apiErr.ToResponse())
}
