package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the admission gates: fixed-window limiter and monthly quota.
type Metrics struct {
	RateLimitDecisions *prometheus.CounterVec
	QuotaDecisions     *prometheus.CounterVec
	QuotaFlushes       *prometheus.CounterVec
	QuotaTrackedKeys   prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RateLimitDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mailguard_ratelimit_decisions_total",
			Help: "Rate limit decisions by key type and outcome",
		}, []string{"key_type", "outcome"}),
		QuotaDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mailguard_quota_decisions_total",
			Help: "Monthly quota decisions by outcome",
		}, []string{"outcome"}),
		QuotaFlushes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mailguard_quota_flushes_total",
			Help: "Usage counter flushes to the durable sink by result",
		}, []string{"result"}),
		QuotaTrackedKeys: f.NewGauge(prometheus.GaugeOpts{
			Name: "mailguard_quota_tracked_counters",
			Help: "Tenant-month usage counters held in memory",
		}),
	}
}

func outcome(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func (m *Metrics) ObserveRateLimit(keyType string, allowed bool) {
	if m == nil {
		return
	}
	m.RateLimitDecisions.WithLabelValues(keyType, outcome(allowed)).Inc()
}

func (m *Metrics) ObserveQuota(allowed bool) {
	if m == nil {
		return
	}
	m.QuotaDecisions.WithLabelValues(outcome(allowed)).Inc()
}

func (m *Metrics) ObserveQuotaFlush(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.QuotaFlushes.WithLabelValues(result).Inc()
}

func (m *Metrics) SetTrackedCounters(n int) {
	if m == nil {
		return
	}
	m.QuotaTrackedKeys.Set(float64(n))
}
