package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/0x-mperego/unimec-display/internal/adapter/metrics"
	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// uploadBodyLimit leaves room for the multipart envelope around the file.
var uploadBodyLimit = strconv.Itoa(domain.MaxUploadBytes/(1<<20)+1) + "M"

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(errorMiddleware())
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            63072000, // 2 years; only sent over HTTPS
		HSTSPreloadEnabled:    true,
		ContentSecurityPolicy: "default-src 'self'; img-src 'self' data:; frame-ancestors 'none'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))
	if len(s.config.AllowedOrigins) > 0 {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     s.config.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowCredentials: true,
		}))
	}

	s.registerHealthRoutes()
	if s.registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))
	}

	s.registerAuthRoutes(newLoginLimiter(s.config.LoginRateLimit, s.config.LoginRateBurst))
	s.registerContentRoutes()
	s.registerStreamRoutes()

	if s.media != nil {
		s.echo.GET("/media/*", echo.WrapHandler(http.StripPrefix("/media", s.media)))
	}
}

func (s *Server) registerContentRoutes() {
	s.echo.GET("/api/contents", s.handleListContents)

	s.echo.POST("/api/contents", s.handleCreateContent, s.requireAdmin)
	s.echo.POST("/api/contents/upload-image", s.handleUploadImage, s.requireAdmin, middleware.BodyLimit(uploadBodyLimit))
	s.echo.PATCH("/api/contents/:id", s.handleUpdateContent, s.requireAdmin)
	s.echo.DELETE("/api/contents/:id", s.handleDeleteContent, s.requireAdmin)
	s.echo.POST("/api/contents/:id/duplicate", s.handleDuplicateContent, s.requireAdmin)
	s.echo.POST("/api/contents/:id/reorder", s.handleReorderContent, s.requireAdmin)
}

func (s *Server) registerStreamRoutes() {
	s.echo.GET("/api/sse/contents", s.handleSSE)
	s.echo.GET("/ws/contents", s.handleWebSocket)
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
