package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/0x-mperego/unimec-display/internal/adapter/metrics"
	"github.com/0x-mperego/unimec-display/internal/app"
	"github.com/0x-mperego/unimec-display/internal/broadcast"
	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/0x-mperego/unimec-display/internal/platform/config"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

type appService interface {
	List(ctx context.Context) ([]domain.PlaylistItem, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.PlaylistItem, error)
	Create(ctx context.Context, item domain.NewItem) (*domain.PlaylistItem, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.ItemPatch) (*domain.PlaylistItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Duplicate(ctx context.Context, id uuid.UUID) (*domain.PlaylistItem, error)
	Reorder(ctx context.Context, id uuid.UUID, dir domain.Direction) (*domain.PlaylistItem, error)
	UploadImage(ctx context.Context, req app.UploadRequest) (*domain.PlaylistItem, error)
}

type streamHub interface {
	Subscribe(ctx context.Context) (*broadcast.Subscriber, error)
	Unsubscribe(sub *broadcast.Subscriber)
	SubscriberCount() int
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app   appService
	hub   streamHub
	media http.Handler

	sessionStore *sessions.CookieStore
	adminHash    []byte
	upgrader     websocket.Upgrader

	registry      *prometheus.Registry
	httpMetrics   *metrics.HTTPMetrics
	streamMetrics *metrics.StreamMetrics

	healthChecks []HealthCheck
	startTime    time.Time
}

type Option func(*Server)

func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) { s.healthChecks = checks }
}

// WithMetrics serves reg at /metrics and records HTTP and stream metrics on it.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
		s.httpMetrics = metrics.NewHTTPMetrics(reg)
		s.streamMetrics = metrics.NewStreamMetrics(reg)
	}
}

func NewServer(cfg *config.Config, app appService, hub streamHub, media http.Handler, opts ...Option) (*Server, error) {
	adminHash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = httpErrorHandler

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          app,
		hub:          hub,
		media:        media,
		sessionStore: setupSessionStore(cfg),
		adminHash:    adminHash,
		upgrader:     newUpgrader(cfg),
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Session keys
const (
	sessionName             = "admin-session"
	sessionKeyAdmin         = "admin"
	sessionKeyAuthenticated = "authenticated_at"
)

func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return sessionStore
}

func newUpgrader(cfg *config.Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     newOriginPolicy(cfg.AllowedOrigins, !cfg.IsProduction()).checkOrigin,
	}
}
