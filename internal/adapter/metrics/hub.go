package metrics

import "github.com/prometheus/client_golang/prometheus"

// HubMetrics tracks the broadcast hub. A nil *HubMetrics records nothing.
type HubMetrics struct {
	Subscribers      prometheus.Gauge
	Broadcasts       prometheus.Counter
	FramesSent       *prometheus.CounterVec
	Dropped          *prometheus.CounterVec
	SnapshotErrors   prometheus.Counter
	SnapshotDuration prometheus.Histogram
}

func NewHubMetrics(reg prometheus.Registerer) *HubMetrics {
	m := &HubMetrics{
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Number of display subscribers currently registered.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "broadcasts_total",
			Help:      "Total number of snapshot fan-outs.",
		}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "frames_sent_total",
			Help:      "Frames enqueued to subscribers by kind.",
		}, []string{"kind"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers removed by the hub, by reason.",
		}, []string{"reason"}),
		SnapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "snapshot_errors_total",
			Help:      "Playlist reads that failed while building a snapshot.",
		}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "snapshot_duration_seconds",
			Help:      "Time spent reading and encoding a playlist snapshot.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}

	reg.MustRegister(m.Subscribers, m.Broadcasts, m.FramesSent, m.Dropped, m.SnapshotErrors, m.SnapshotDuration)
	return m
}

func (m *HubMetrics) SetSubscribers(n int) {
	if m != nil {
		m.Subscribers.Set(float64(n))
	}
}

func (m *HubMetrics) IncBroadcasts() {
	if m != nil {
		m.Broadcasts.Inc()
	}
}

func (m *HubMetrics) IncFrames(kind string) {
	if m != nil {
		m.FramesSent.WithLabelValues(kind).Inc()
	}
}

func (m *HubMetrics) IncDropped(reason string) {
	if m != nil {
		m.Dropped.WithLabelValues(reason).Inc()
	}
}

func (m *HubMetrics) IncSnapshotErrors() {
	if m != nil {
		m.SnapshotErrors.Inc()
	}
}

func (m *HubMetrics) ObserveSnapshot(seconds float64) {
	if m != nil {
		m.SnapshotDuration.Observe(seconds)
	}
}
