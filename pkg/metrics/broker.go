package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BrokerMetrics records content request round trips to sub-domains.
type BrokerMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// NewBrokerMetrics registers the content-broker metrics on the provided registerer.
func NewBrokerMetrics(reg prometheus.Registerer) *BrokerMetrics {
	if reg == nil {
		return &BrokerMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "content_request_duration_seconds",
		Help:    "Duration of content requests to sub-domains in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"origin"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "content_request_outcomes",
		Help: "Content request outcomes by origin and result.",
	}, []string{"origin", "outcome"})
	reg.MustRegister(duration, outcomes)
	return &BrokerMetrics{
		duration: duration,
		outcomes: outcomes,
	}
}

// ObserveDuration records the round trip duration for the given origin.
func (b *BrokerMetrics) ObserveDuration(origin string, duration time.Duration) {
	if b == nil || b.duration == nil {
		return
	}
	b.duration.WithLabelValues(normalizeLabel(origin)).Observe(duration.Seconds())
}

// IncOutcome counts one request outcome (success, timeout, error).
func (b *BrokerMetrics) IncOutcome(origin, outcome string) {
	if b == nil || b.outcomes == nil {
		return
	}
	b.outcomes.WithLabelValues(normalizeLabel(origin), normalizeLabel(outcome)).Inc()
}
