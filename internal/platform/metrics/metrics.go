// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the stop and rate collectors.
const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeTimeout     = "timeout"
	OutcomeCancelled   = "cancelled"
	OutcomeError       = "error"
	OutcomeUnavailable = "bus_unavailable"
)

// Metrics groups the service collectors.
type Metrics struct {
	// Stop rendezvous
	StopRequestsTotal *prometheus.CounterVec
	StopAckDuration   prometheus.Histogram

	// Rate aggregation
	RateEvaluationsTotal   *prometheus.CounterVec
	RateEvaluationDuration prometheus.Histogram
	RateCacheHitsTotal     prometheus.Counter
	RateCacheMissesTotal   prometheus.Counter

	// Event bus
	BusEventsPublishedTotal *prometheus.CounterVec
	BusHandlerPanicsTotal   *prometheus.CounterVec

	// Processors
	RunningProcessors *prometheus.GaugeVec
}

// New registers every collector on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StopRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "processor_stop_requests_total",
			Help: "Processor stop requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		StopAckDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "processor_stop_ack_duration_seconds",
			Help:    "Time between publishing a stop command and observing its acknowledgment.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		RateEvaluationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_evaluations_total",
			Help: "Per-pair rate evaluations by outcome.",
		}, []string{"outcome"}),
		RateEvaluationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rate_evaluation_duration_seconds",
			Help:    "Duration of a single pair evaluation.",
			Buckets: prometheus.DefBuckets,
		}),
		RateCacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "rate_provider_cache_hits_total",
			Help: "Upstream rate lookups served from cache.",
		}),
		RateCacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "rate_provider_cache_misses_total",
			Help: "Upstream rate lookups that reached the provider.",
		}),
		BusEventsPublishedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_events_published_total",
			Help: "Events accepted by the bus, by event type.",
		}, []string{"event_type"}),
		BusHandlerPanicsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_handler_panics_total",
			Help: "Recovered handler panics, by event type.",
		}, []string{"event_type"}),
		RunningProcessors: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "processors_running",
			Help: "Processors currently running, by kind.",
		}, []string{"kind"}),
	}
}

// NewNop returns collectors bound to a private registry, for callers that do not export them.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveSince records the seconds elapsed since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
