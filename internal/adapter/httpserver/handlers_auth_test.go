package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/0x-mperego/unimec-display/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_Success(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := serve(srv, http.MethodPost, "/api/auth/login", `{"password":"`+testAdminPassword+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":true}`, rec.Body.String())

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, int(time.Hour.Seconds()), cookie.MaxAge)
}

func TestLogin_WrongPassword(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := serve(srv, http.MethodPost, "/api/auth/login", `{"password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeJSON[apperrors.ErrorResponse](t, rec)
	assert.Equal(t, apperrors.TypeUnauthorized, resp.Type)
	assert.Nil(t, sessionCookie(rec))
}

func TestLogin_MissingPassword(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := serve(srv, http.MethodPost, "/api/auth/login", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeJSON[apperrors.ErrorResponse](t, rec)
	assert.Equal(t, apperrors.TypeValidation, resp.Type)
	assert.Contains(t, resp.Error, "password: required")
}

func TestLogin_MalformedBody(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := serve(srv, http.MethodPost, "/api/auth/login", `{"password":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.LoginRateLimit = 0.01
	cfg.LoginRateBurst = 2
	srv := newTestServerWithConfig(t, cfg, &mockAppService{}, &mockHub{})

	for range 2 {
		rec := serve(srv, http.MethodPost, "/api/auth/login", `{"password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := serve(srv, http.MethodPost, "/api/auth/login", `{"password":"`+testAdminPassword+`"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"type":"rate_limited"`)
}

func TestSession_ReflectsLogin(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := serve(srv, http.MethodGet, "/api/auth/session", "")
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	cookie := login(t, srv)
	rec = serve(srv, http.MethodGet, "/api/auth/session", "", cookie)
	assert.JSONEq(t, `{"authenticated":true}`, rec.Body.String())
}

func TestLogout_ExpiresCookie(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})
	cookie := login(t, srv)

	rec := serve(srv, http.MethodPost, "/api/auth/logout", "", cookie)

	require.Equal(t, http.StatusOK, rec.Code)
	var expired bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionName && c.MaxAge < 0 {
			expired = true
		}
	}
	assert.True(t, expired, "logout must expire the session cookie")
}

func TestRequireAdmin_RejectsWithJSON401(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := serve(srv, http.MethodDelete, "/api/contents/9f2d8c1e-4a5b-4c6d-8e7f-0a1b2c3d4e5f", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized","type":"unauthorized"}`, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestRequireAdmin_TamperedCookie(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})
	cookie := login(t, srv)
	cookie.Value = "x" + cookie.Value

	rec := serve(srv, http.MethodPost, "/api/contents", `{}`, cookie)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin_ExpiredSession(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	session, err := srv.sessionStore.Get(req, sessionName)
	require.NoError(t, err)
	session.Values[sessionKeyAdmin] = true
	session.Values[sessionKeyAuthenticated] = time.Now().Add(-2 * time.Hour).Unix()
	require.NoError(t, session.Save(req, rec))

	resp := serve(srv, http.MethodPost, "/api/contents", `{}`, sessionCookie(rec))

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
