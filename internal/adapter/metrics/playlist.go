package metrics

import "github.com/prometheus/client_golang/prometheus"

// PlaylistMetrics tracks playlist mutations. A nil *PlaylistMetrics records nothing.
type PlaylistMetrics struct {
	Reorders  *prometheus.CounterVec
	Mutations *prometheus.CounterVec
	Uploads   *prometheus.CounterVec
}

func NewPlaylistMetrics(reg prometheus.Registerer) *PlaylistMetrics {
	m := &PlaylistMetrics{
		Reorders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "playlist",
			Name:      "reorders_total",
			Help:      "Reorder requests by result.",
		}, []string{"result"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "playlist",
			Name:      "mutations_total",
			Help:      "Successful playlist mutations by operation.",
		}, []string{"op"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "playlist",
			Name:      "uploads_total",
			Help:      "Image uploads by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.Reorders, m.Mutations, m.Uploads)
	return m
}

func (m *PlaylistMetrics) IncReorder(result string) {
	if m != nil {
		m.Reorders.WithLabelValues(result).Inc()
	}
}

func (m *PlaylistMetrics) IncMutation(op string) {
	if m != nil {
		m.Mutations.WithLabelValues(op).Inc()
	}
}

func (m *PlaylistMetrics) IncUpload(result string) {
	if m != nil {
		m.Uploads.WithLabelValues(result).Inc()
	}
}
