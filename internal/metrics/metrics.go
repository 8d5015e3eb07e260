// Package metrics holds the Prometheus collectors for circulation activity.
//
// All methods are safe on a nil *Metrics so components can run without
// instrumentation in tests.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"library-circulation-backend/internal/domain"
)

const (
	metricsNamespace = "library"

	circulationSubsystem  = "circulation"
	notificationSubsystem = "notification"
	httpSubsystem         = "http"
)

type Metrics struct {
	// AllocationsTotal counts hold-queue passes.
	// Labels: outcome (APPROVED, NO_ELIGIBLE_REQUEST, INSUFFICIENT_CAPACITY)
	AllocationsTotal *prometheus.CounterVec

	// LoansTotal counts borrow records created.
	// Labels: kind (physical, ebook)
	LoansTotal *prometheus.CounterVec

	ReturnsTotal prometheus.Counter

	// ViolationsTotal counts violations recorded on return.
	// Labels: policy
	ViolationsTotal *prometheus.CounterVec

	// NotificationsTotal counts delivery attempts.
	// Labels: sink (store, email), status (success, error)
	NotificationsTotal *prometheus.CounterVec

	NotificationsDropped prometheus.Counter

	// RequestsTotal counts HTTP requests.
	// Labels: route, method, code
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures HTTP handler latency.
	// Labels: route, method
	RequestDurationSeconds *prometheus.HistogramVec
}

const (
	LoanKindPhysical = "physical"
	LoanKindEbook    = "ebook"
)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AllocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: circulationSubsystem,
				Name:      "allocations_total",
				Help:      "Hold queue allocation passes by outcome",
			},
			[]string{"outcome"},
		),
		LoansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: circulationSubsystem,
				Name:      "loans_total",
				Help:      "Borrow records created by kind",
			},
			[]string{"kind"},
		),
		ReturnsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: circulationSubsystem,
				Name:      "returns_total",
				Help:      "Borrow records returned",
			},
		),
		ViolationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: circulationSubsystem,
				Name:      "violations_total",
				Help:      "Violations recorded on return by policy",
			},
			[]string{"policy"},
		),
		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: notificationSubsystem,
				Name:      "deliveries_total",
				Help:      "Notification deliveries by sink and status",
			},
			[]string{"sink", "status"},
		),
		NotificationsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: notificationSubsystem,
				Name:      "dropped_total",
				Help:      "Notifications dropped because the queue was full or closed",
			},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "requests_total",
				Help:      "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"route", "method"},
		),
	}
}

func (m *Metrics) ObserveAllocation(result domain.AllocationResult) {
	if m == nil {
		return
	}
	m.AllocationsTotal.WithLabelValues(string(result.Outcome)).Inc()
}

func (m *Metrics) ObserveLoan(kind string) {
	if m == nil {
		return
	}
	m.LoansTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveReturn(violations []domain.Violation) {
	if m == nil {
		return
	}
	m.ReturnsTotal.Inc()
	for _, v := range violations {
		m.ViolationsTotal.WithLabelValues(v.PolicyID).Inc()
	}
}

func (m *Metrics) ObserveDelivery(sink string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.NotificationsTotal.WithLabelValues(sink, status).Inc()
}

func (m *Metrics) ObserveDropped() {
	if m == nil {
		return
	}
	m.NotificationsDropped.Inc()
}

func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.RequestDurationSeconds.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
