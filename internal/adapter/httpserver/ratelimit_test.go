package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/0x-mperego/unimec-display/internal/platform/errors"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kioskAddr = "10.0.0.7:41000"

func attempt(t *testing.T, mw echo.MiddlewareFunc, remoteAddr string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	err := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})(e.NewContext(req, rec))
	return rec, err
}

func TestLoginLimiter_BurstThenReject(t *testing.T) {
	mw := newLoginLimiter(0.5, 2)

	for range 2 {
		rec, err := attempt(t, mw, kioskAddr)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec, err := attempt(t, mw, kioskAddr)
	require.Error(t, err)
	structured := apperrors.AsStructuredError(err)
	assert.Equal(t, apperrors.TypeRateLimited, structured.Type)
	assert.Equal(t, http.StatusTooManyRequests, structured.HTTPStatus())
	assert.Equal(t, "10.0.0.7", structured.Context["client_ip"])
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
}

func TestLoginLimiter_ClientsAreIndependent(t *testing.T) {
	mw := newLoginLimiter(0.01, 1)

	_, err := attempt(t, mw, kioskAddr)
	require.NoError(t, err)

	_, err = attempt(t, mw, "10.0.0.8:41000")
	require.NoError(t, err, "a second client keeps its own bucket")

	_, err = attempt(t, mw, kioskAddr)
	assert.Error(t, err)
}

func TestLoginLimiter_RetryAfterRoundsUp(t *testing.T) {
	mw := newLoginLimiter(0.3, 1)

	_, err := attempt(t, mw, kioskAddr)
	require.NoError(t, err)

	rec, err := attempt(t, mw, kioskAddr)
	require.Error(t, err)
	assert.Equal(t, "4", rec.Header().Get("Retry-After"))
}

func TestLoginLimiter_DisabledByZeroRate(t *testing.T) {
	mw := newLoginLimiter(0, 0)

	for range 20 {
		rec, err := attempt(t, mw, kioskAddr)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}
