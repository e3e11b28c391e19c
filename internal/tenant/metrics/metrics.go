package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for tenant config lookups on the request path.
type Metrics struct {
	GetTenantDuration prometheus.Histogram
	Lookups           *prometheus.CounterVec
}

// New creates tenant metrics registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		GetTenantDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailguard_get_tenant_duration_seconds",
			Help:    "Duration of tenant config lookups, cache hits included",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mailguard_tenant_lookups_total",
			Help: "Tenant config lookups by result (hit, miss, not_found, error)",
		}, []string{"result"}),
	}
}

// ObserveGetTenant records the duration of a Get call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveGetTenant(start time.Time, result string) {
	if m == nil {
		return
	}
	m.GetTenantDuration.Observe(time.Since(start).Seconds())
	m.Lookups.WithLabelValues(result).Inc()
}
