package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the per-tenant validation log queues.
type Metrics struct {
	Enqueued      prometheus.Counter
	Dropped       prometheus.Counter
	Flushed       prometheus.Counter
	BatchFailures prometheus.Counter
	QueueDepth    *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Enqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "mailguard_logqueue_enqueued_total",
			Help: "Validation logs accepted into tenant queues",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "mailguard_logqueue_dropped_total",
			Help: "Validation logs dropped because a tenant queue was full",
		}),
		Flushed: f.NewCounter(prometheus.CounterOpts{
			Name: "mailguard_logqueue_flushed_total",
			Help: "Validation logs written to the sink",
		}),
		BatchFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "mailguard_logqueue_batch_failures_total",
			Help: "Batches the sink rejected",
		}),
		QueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mailguard_logqueue_depth",
			Help: "Queued validation logs per tenant",
		}, []string{"tenant_id"}),
	}
}

func (m *Metrics) ObserveEnqueue(tenantID string, queued, dropped, depth int) {
	if m == nil {
		return
	}
	m.Enqueued.Add(float64(queued))
	m.Dropped.Add(float64(dropped))
	m.QueueDepth.WithLabelValues(tenantID).Set(float64(depth))
}

func (m *Metrics) ObserveFlush(tenantID string, flushed, depth int, failed bool) {
	if m == nil {
		return
	}
	m.Flushed.Add(float64(flushed))
	if failed {
		m.BatchFailures.Inc()
	}
	m.QueueDepth.WithLabelValues(tenantID).Set(float64(depth))
}
