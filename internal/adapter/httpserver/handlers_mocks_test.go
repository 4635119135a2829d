package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/0x-mperego/unimec-display/internal/app"
	"github.com/0x-mperego/unimec-display/internal/broadcast"
	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/0x-mperego/unimec-display/internal/platform/config"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testAdminPassword = "correct-horse-battery"

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// --- Mock implementations ---

type mockAppService struct {
	listFn      func(ctx context.Context) ([]domain.PlaylistItem, error)
	getFn       func(ctx context.Context, id uuid.UUID) (*domain.PlaylistItem, error)
	createFn    func(ctx context.Context, item domain.NewItem) (*domain.PlaylistItem, error)
	updateFn    func(ctx context.Context, id uuid.UUID, patch domain.ItemPatch) (*domain.PlaylistItem, error)
	deleteFn    func(ctx context.Context, id uuid.UUID) error
	duplicateFn func(ctx context.Context, id uuid.UUID) (*domain.PlaylistItem, error)
	reorderFn   func(ctx context.Context, id uuid.UUID, dir domain.Direction) (*domain.PlaylistItem, error)
	uploadFn    func(ctx context.Context, req app.UploadRequest) (*domain.PlaylistItem, error)
}

func (m *mockAppService) List(ctx context.Context) ([]domain.PlaylistItem, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockAppService) Get(ctx context.Context, id uuid.UUID) (*domain.PlaylistItem, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrItemNotFound
}

func (m *mockAppService) Create(ctx context.Context, item domain.NewItem) (*domain.PlaylistItem, error) {
	if m.createFn != nil {
		return m.createFn(ctx, item)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppService) Update(ctx context.Context, id uuid.UUID, patch domain.ItemPatch) (*domain.PlaylistItem, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, patch)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppService) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return errors.New("not implemented")
}

func (m *mockAppService) Duplicate(ctx context.Context, id uuid.UUID) (*domain.PlaylistItem, error) {
	if m.duplicateFn != nil {
		return m.duplicateFn(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppService) Reorder(ctx context.Context, id uuid.UUID, dir domain.Direction) (*domain.PlaylistItem, error) {
	if m.reorderFn != nil {
		return m.reorderFn(ctx, id, dir)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppService) UploadImage(ctx context.Context, req app.UploadRequest) (*domain.PlaylistItem, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

type mockHub struct {
	subscribeFn func(ctx context.Context) (*broadcast.Subscriber, error)
	subscribers int
}

func (m *mockHub) Subscribe(ctx context.Context) (*broadcast.Subscriber, error) {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx)
	}
	return nil, broadcast.ErrHubStopped
}

func (m *mockHub) Unsubscribe(*broadcast.Subscriber) {}

func (m *mockHub) SubscriberCount() int { return m.subscribers }

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:           "test",
		Port:             "0",
		AdminPassword:    testAdminPassword,
		SessionSecret:    "test-secret-key-32-bytes-long!!!",
		SessionMaxAge:    time.Hour,
		HubPulseInterval: time.Second,
		LoginRateLimit:   100,
		LoginRateBurst:   100,
	}
}

// newTestServer builds a server without NewServer so the admin hash can use
// the cheapest bcrypt cost.
func newTestServer(t *testing.T, svc appService, opts ...Option) *Server {
	t.Helper()
	return newTestServerWithConfig(t, testConfig(), svc, &mockHub{}, opts...)
}

func newTestServerWithConfig(t *testing.T, cfg *config.Config, svc appService, hub streamHub, opts ...Option) *Server {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	e := echo.New()
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = httpErrorHandler

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          svc,
		hub:          hub,
		sessionStore: setupSessionStore(cfg),
		adminHash:    hash,
		upgrader:     newUpgrader(cfg),
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()
	return srv
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return errorMiddleware()(handler)(c)
}

// serve runs a request through the full middleware chain.
func serve(srv *Server, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

// login returns the admin session cookie issued by a successful login.
func login(t *testing.T, srv *Server) *http.Cookie {
	t.Helper()

	rec := serve(srv, http.MethodPost, "/api/auth/login", `{"password":"`+testAdminPassword+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie, "login did not set a session cookie")
	return cookie
}

// sessionCookie returns the last live admin session cookie set on rec.
func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionName && c.MaxAge >= 0 {
			found = c
		}
	}
	return found
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func testItem(kind domain.ItemKind, orderIndex int) *domain.PlaylistItem {
	payload := json.RawMessage(`{"text":"Benvenuti"}`)
	if kind == domain.KindImage {
		payload = json.RawMessage(`{"url":"/media/images/a.png","mimeType":"image/png","storagePath":"images/a.png"}`)
	}
	return &domain.PlaylistItem{
		ID:              uuid.New(),
		Kind:            kind,
		Payload:         payload,
		DurationSeconds: 10,
		OrderIndex:      orderIndex,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
}
