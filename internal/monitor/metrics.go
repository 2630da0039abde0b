package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the index refresh collectors.
type Metrics struct {
	Entries        prometheus.Gauge
	Collisions     prometheus.Gauge
	UpdateSeconds  prometheus.Histogram
	UpdateFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Entries: f.NewGauge(prometheus.GaugeOpts{
			Name: "ark_index_entries",
			Help: "Number of paths in the directory index.",
		}),
		Collisions: f.NewGauge(prometheus.GaugeOpts{
			Name: "ark_index_collisions",
			Help: "Number of identifiers produced by more than one path.",
		}),
		UpdateSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ark_index_update_seconds",
			Help:    "Duration of index refreshes.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		UpdateFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "ark_index_update_failures_total",
			Help: "Refreshes that failed to update or persist the index.",
		}),
	}
}

func (m *Metrics) observe(ix Index) {
	m.Entries.Set(float64(ix.Size()))
	m.Collisions.Set(float64(len(ix.Collisions())))
}
