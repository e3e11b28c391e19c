package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers check execution and the decisions they feed.
type Metrics struct {
	CheckDuration   *prometheus.HistogramVec
	Recommendations *prometheus.CounterVec
	DroppedEffects  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CheckDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mailguard_check_duration_seconds",
			Help:    "Check latency by check and result (pass, fail, error)",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .2, .4, .6, 1},
		}, []string{"check", "result"}),
		Recommendations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mailguard_recommendations_total",
			Help: "Validation outcomes by recommendation",
		}, []string{"recommendation"}),
		DroppedEffects: f.NewCounter(prometheus.CounterOpts{
			Name: "mailguard_side_effects_dropped_total",
			Help: "Post-response side effects rejected by a full dispatcher",
		}),
	}
}

func (m *Metrics) ObserveCheck(check, result string, seconds float64) {
	if m == nil {
		return
	}
	m.CheckDuration.WithLabelValues(check, result).Observe(seconds)
}

func (m *Metrics) ObserveRecommendation(rec string) {
	if m == nil {
		return
	}
	m.Recommendations.WithLabelValues(rec).Inc()
}

func (m *Metrics) IncDroppedEffects() {
	if m == nil {
		return
	}
	m.DroppedEffects.Inc()
}
