package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusSink mirrors every audit entry into counters and histograms,
// grounded on the teacher's internal/telemetry.Metrics construction idiom.
// It never gates a call; it only observes.
type PrometheusSink struct {
	callTotal      *prometheus.CounterVec
	violationTotal *prometheus.CounterVec
	costUSDTotal   *prometheus.CounterVec
	durationMS     *prometheus.HistogramVec
}

// NewPrometheusSink creates and registers the sink's metrics against the
// default registry.
func NewPrometheusSink() *PrometheusSink {
	return &PrometheusSink{
		callTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardproxy_calls_total",
			Help: "Total pipeline calls, labeled by provider and outcome.",
		}, []string{"provider", "outcome"}),

		violationTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardproxy_violations_total",
			Help: "Total violations raised, labeled by code and interceptor.",
		}, []string{"code", "interceptor"}),

		costUSDTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardproxy_cost_usd_total",
			Help: "Total estimated cost in USD, labeled by provider.",
		}, []string{"provider"}),

		durationMS: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guardproxy_call_duration_ms",
			Help:    "Pipeline call duration in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"provider"}),
	}
}

func (p *PrometheusSink) Record(e Entry) {
	p.callTotal.WithLabelValues(string(e.Provider), string(e.Outcome)).Inc()
	p.costUSDTotal.WithLabelValues(string(e.Provider)).Add(e.CostUSD)
	p.durationMS.WithLabelValues(string(e.Provider)).Observe(float64(e.DurationMS))
	for _, v := range e.Violations {
		p.violationTotal.WithLabelValues(string(v.Code), string(v.Interceptor)).Inc()
	}
}
