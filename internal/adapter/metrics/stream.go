package metrics

import "github.com/prometheus/client_golang/prometheus"

// StreamMetrics tracks open display streams per transport.
type StreamMetrics struct {
	ActiveStreams *prometheus.GaugeVec
	StreamsOpened *prometheus.CounterVec
}

func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	m := &StreamMetrics{
		ActiveStreams: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "active",
			Help:      "Number of open display streams.",
		}, []string{"transport"}),
		StreamsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "opened_total",
			Help:      "Total display streams opened.",
		}, []string{"transport"}),
	}

	reg.MustRegister(m.ActiveStreams, m.StreamsOpened)
	return m
}

// Track records a stream as open and returns the func that closes it.
func (m *StreamMetrics) Track(transport string) (done func()) {
	if m == nil {
		return func() {}
	}
	m.StreamsOpened.WithLabelValues(transport).Inc()
	g := m.ActiveStreams.WithLabelValues(transport)
	g.Inc()
	return g.Dec
}
