package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/0x-mperego/unimec-display/internal/platform/version"
	"github.com/labstack/echo/v4"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second
)

var errHubNotResponding = errors.New("hub not responding")

// HealthCheck is a named dependency probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type checkResult struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

type readinessResponse struct {
	Status      string                 `json:"status"`
	Checks      map[string]checkResult `json:"checks"`
	Subscribers int                    `json:"subscribers"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleStartup(c echo.Context) error {
	return s.respondReadiness(c, startupProbeTimeout)
}

func (s *Server) handleReadiness(c echo.Context) error {
	return s.respondReadiness(c, readinessProbeTimeout)
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status":         "ok",
		"uptime_seconds": time.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// respondReadiness runs every dependency check in parallel and reports each
// one. The hub counts as a dependency: a stalled actor means streams cannot
// be served.
func (s *Server) respondReadiness(c echo.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
	defer cancel()

	resp := readinessResponse{
		Status: "ready",
		Checks: s.runHealthChecks(ctx),
	}

	resp.Subscribers = s.hub.SubscriberCount()
	if resp.Subscribers < 0 {
		resp.Checks["hub"] = checkResult{Status: "error", Error: errHubNotResponding.Error()}
		resp.Subscribers = 0
	}

	status := http.StatusOK
	for _, r := range resp.Checks {
		if r.Status != "ok" {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			break
		}
	}

	if err := c.JSON(status, resp); err != nil {
		return fmt.Errorf("failed to write readiness response: %w", err)
	}
	return nil
}

func (s *Server) runHealthChecks(ctx context.Context) map[string]checkResult {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]checkResult, len(s.healthChecks)+1)
	)

	for _, hc := range s.healthChecks {
		wg.Go(func() {
			start := time.Now()
			err := hc.Check(ctx)
			r := checkResult{Status: "ok", LatencyMS: float64(time.Since(start).Microseconds()) / 1000}
			if err != nil {
				r.Status = "error"
				r.Error = err.Error()
			}

			mu.Lock()
			results[hc.Name] = r
			mu.Unlock()
		})
	}
	wg.Wait()
	return results
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
