package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers device fingerprint store calls.
type Metrics struct {
	StoreLatency *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		StoreLatency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mailguard_fingerprint_store_duration_seconds",
			Help:    "Fingerprint store call latency by backend, operation and result",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"backend", "op", "result"}),
	}
}

func (m *Metrics) ObserveStore(backend, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StoreLatency.WithLabelValues(backend, op, result).Observe(time.Since(start).Seconds())
}
