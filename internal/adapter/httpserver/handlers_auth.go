package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/0x-mperego/unimec-display/internal/platform/errors"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Password string `json:"password" validate:"required,max=256"`
}

type sessionResponse struct {
	Authenticated bool `json:"authenticated"`
}

func (s *Server) registerAuthRoutes(rateLimiter echo.MiddlewareFunc) {
	s.echo.POST("/api/auth/login", s.handleLogin, rateLimiter)
	s.echo.POST("/api/auth/logout", s.handleLogout)
	s.echo.GET("/api/auth/session", s.handleSession)
}

// requireAdmin rejects requests without a valid admin session with a JSON
// 401. It never redirects.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.isAuthenticated(c) {
			return apperrors.UnauthorizedError("unauthorized")
		}
		return next(c)
	}
}

func (s *Server) isAuthenticated(c echo.Context) bool {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return false
	}
	if admin, ok := session.Values[sessionKeyAdmin].(bool); !ok || !admin {
		return false
	}
	authenticatedAt, ok := session.Values[sessionKeyAuthenticated].(int64)
	if !ok {
		return false
	}
	return time.Since(time.Unix(authenticatedAt, 0)) < s.config.SessionMaxAge
}

func (s *Server) handleLogin(c echo.Context) error {
	ctx := c.Request().Context()

	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword(s.adminHash, []byte(req.Password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return apperrors.InternalError("failed to verify password", err)
		}
		slog.WarnContext(ctx, "Admin login failed", "remote_ip", c.RealIP())
		return apperrors.UnauthorizedError("invalid password")
	}

	// Drop any pre-login session and issue a fresh one.
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err == nil && !session.IsNew {
		session.Options.MaxAge = -1
		if err := session.Save(c.Request(), c.Response().Writer); err != nil {
			return apperrors.InternalError("failed to invalidate old session", err)
		}
	}

	session, err = s.sessionStore.New(c.Request(), sessionName)
	if err != nil && session == nil {
		return apperrors.InternalError("failed to create new session", err)
	}
	session.Values[sessionKeyAdmin] = true
	session.Values[sessionKeyAuthenticated] = time.Now().Unix()
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}

	slog.InfoContext(ctx, "Admin logged in", "remote_ip", c.RealIP())

	if err := c.JSON(http.StatusOK, sessionResponse{Authenticated: true}); err != nil {
		return fmt.Errorf("failed to write login response: %w", err)
	}
	return nil
}

func (s *Server) handleLogout(c echo.Context) error {
	ctx := c.Request().Context()

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read session during logout", "error", err)
		session, err = s.sessionStore.New(c.Request(), sessionName)
		if err != nil && session == nil {
			return apperrors.InternalError("failed to create new session during logout", err)
		}
	}
	session.Options.MaxAge = -1

	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save logout session", err)
	}

	slog.InfoContext(ctx, "Admin logged out")

	if err := c.JSON(http.StatusOK, sessionResponse{Authenticated: false}); err != nil {
		return fmt.Errorf("failed to write logout response: %w", err)
	}
	return nil
}

func (s *Server) handleSession(c echo.Context) error {
	if err := c.JSON(http.StatusOK, sessionResponse{Authenticated: s.isAuthenticated(c)}); err != nil {
		return fmt.Errorf("failed to write session response: %w", err)
	}
	return nil
}
