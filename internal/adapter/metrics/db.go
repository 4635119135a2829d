package metrics

import "github.com/prometheus/client_golang/prometheus"

// DBMetrics tracks queries against the content store. A nil *DBMetrics records nothing.
type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
	Notifications prometheus.Counter
	Reconnects    prometheus.Counter
}

func NewDBMetrics(reg prometheus.Registerer) *DBMetrics {
	m := &DBMetrics{
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query latency by statement verb and table.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"query"}),
		QueryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Failed database queries by statement verb and table.",
		}, []string{"query"}),
		Notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "notifications_total",
			Help:      "Change notifications received from the database.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "listener_reconnects_total",
			Help:      "Times the change listener re-established its connection.",
		}),
	}

	reg.MustRegister(m.QueryDuration, m.QueryErrors, m.Notifications, m.Reconnects)
	return m
}

func (m *DBMetrics) ObserveQuery(query string, seconds float64, failed bool) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(query).Observe(seconds)
	if failed {
		m.QueryErrors.WithLabelValues(query).Inc()
	}
}

func (m *DBMetrics) IncNotification() {
	if m != nil {
		m.Notifications.Inc()
	}
}

func (m *DBMetrics) IncReconnect() {
	if m != nil {
		m.Reconnects.Inc()
	}
}
