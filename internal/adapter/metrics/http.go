package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Requests that match no route share one label value so scanners cannot
// blow up the series count.
const unmatchedRoute = "unmatched"

type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	ResponseBytes   *prometheus.HistogramVec
	InFlight        prometheus.Gauge
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	labels := []string{"method", "route", "status"}
	m := &HTTPMetrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, labels),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by route and status class.",
		}, labels),
		ResponseBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "Size of API response bodies.",
			Buckets:   prometheus.ExponentialBuckets(128, 4, 7),
		}, []string{"route"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "API requests currently being served.",
		}),
	}

	reg.MustRegister(m.RequestDuration, m.RequestsTotal, m.ResponseBytes, m.InFlight)
	return m
}

// Middleware records request metrics. Probes, /metrics and the long-lived
// stream endpoints are skipped; stream connections are tracked by
// StreamMetrics instead.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if skipRoute(route) {
				return next(c)
			}
			if route == "" || route == "/*" {
				route = unmatchedRoute
			}

			m.InFlight.Inc()
			start := time.Now()
			err := next(c)
			m.InFlight.Dec()

			// The status is final only after the error handler has run.
			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = http.StatusInternalServerError
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}

			class := statusClass(status)
			method := c.Request().Method
			m.RequestDuration.WithLabelValues(method, route, class).Observe(time.Since(start).Seconds())
			m.RequestsTotal.WithLabelValues(method, route, class).Inc()
			m.ResponseBytes.WithLabelValues(route).Observe(float64(c.Response().Size))
			return err
		}
	}
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

func skipRoute(route string) bool {
	switch route {
	case "/metrics", "/version", "/api/sse/contents", "/ws/contents":
		return true
	}
	return strings.HasPrefix(route, "/health/") || strings.HasPrefix(route, "/media/")
}
