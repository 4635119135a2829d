package metrics

import "github.com/prometheus/client_golang/prometheus"

// RedisMetrics tracks commands sent to Redis. A nil *RedisMetrics records nothing.
type RedisMetrics struct {
	Ops              *prometheus.CounterVec
	OpDuration       *prometheus.HistogramVec
	ConnectionErrors prometheus.Counter
}

func NewRedisMetrics(reg prometheus.Registerer) *RedisMetrics {
	m := &RedisMetrics{
		Ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operations_total",
			Help:      "Redis commands by name and status.",
		}, []string{"operation", "status"}),
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Redis command latency.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}, []string{"operation"}),
		ConnectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "connection_errors_total",
			Help:      "Failed Redis dials.",
		}),
	}

	reg.MustRegister(m.Ops, m.OpDuration, m.ConnectionErrors)
	return m
}

func (m *RedisMetrics) ObserveOp(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.Ops.WithLabelValues(operation, status).Inc()
	m.OpDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *RedisMetrics) IncConnectionError() {
	if m != nil {
		m.ConnectionErrors.Inc()
	}
}
