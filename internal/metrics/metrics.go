// Package metrics defines the Prometheus collectors for the reservation engine.
// All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Admission outcomes.
const (
	OutcomeAdmitted         = "admitted"
	OutcomeCapacityExceeded = "capacity_exceeded"
	OutcomeDeadlineExpired  = "deadline_expired"
	OutcomeInvalid          = "invalid"
	OutcomeNotFound         = "not_found"
	OutcomeContention       = "contention"
	OutcomeForbidden        = "forbidden"
	OutcomeError            = "error"
)

// Cancellation results.
const (
	CancelCancelled        = "cancelled"
	CancelAlreadyCancelled = "already_cancelled"
)

// Metrics groups the engine's collectors.
type Metrics struct {
	admissions    *prometheus.CounterVec
	retries       prometheus.Counter
	duration      prometheus.Histogram
	cancellations *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventbooking",
			Name:      "admissions_total",
			Help:      "Booking admission attempts by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventbooking",
			Name:      "admission_retries_total",
			Help:      "Units of work retried after a concurrent update conflict.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "eventbooking",
			Name:      "admission_duration_seconds",
			Help:      "Time spent deciding a booking admission.",
			Buckets:   prometheus.DefBuckets,
		}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventbooking",
			Name:      "cancellations_total",
			Help:      "Booking cancellations by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.admissions, m.retries, m.duration, m.cancellations)
	return m
}

// ObserveAdmission records one admission decision.
func (m *Metrics) ObserveAdmission(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

// IncRetry records one conflict retry.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// IncCancellation records one cancellation request that passed authorization.
func (m *Metrics) IncCancellation(result string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(result).Inc()
}

// Handler exposes the registry over HTTP.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
