// Package metrics exposes Prometheus collectors for the loan engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "microfin"

// Metrics holds the collectors on a private registry so tests can build as
// many instances as they like. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	loansCreated    prometheus.Counter
	principalIssued prometheus.Counter
	payments        *prometheus.CounterVec
	amountTendered  prometheus.Counter
	paymentFailures *prometheus.CounterVec
	paymentDuration prometheus.Histogram
	remindersSent   *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loansCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loans_created_total",
			Help:      "Loans issued.",
		}),
		principalIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "principal_issued_total",
			Help:      "Principal disbursed across all loans.",
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Applied payments by classification.",
		}, []string{"classification"}),
		amountTendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_amount_total",
			Help:      "Sum of tendered payment amounts.",
		}),
		paymentFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_failures_total",
			Help:      "Rejected or failed payments by reason.",
		}, []string{"reason"}),
		paymentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_duration_seconds",
			Help:      "Time to apply a payment, lock wait included.",
			Buckets:   prometheus.DefBuckets,
		}),
		remindersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_total",
			Help:      "Payment reminders by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.loansCreated,
		m.principalIssued,
		m.payments,
		m.amountTendered,
		m.paymentFailures,
		m.paymentDuration,
		m.remindersSent,
		m.httpRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) LoanCreated(principal decimal.Decimal) {
	if m == nil {
		return
	}
	m.loansCreated.Inc()
	m.principalIssued.Add(principal.InexactFloat64())
}

func (m *Metrics) PaymentApplied(classification string, amount decimal.Decimal, took time.Duration) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(classification).Inc()
	m.amountTendered.Add(amount.InexactFloat64())
	m.paymentDuration.Observe(took.Seconds())
}

func (m *Metrics) PaymentFailed(reason string) {
	if m == nil {
		return
	}
	m.paymentFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ReminderSent(outcome string) {
	if m == nil {
		return
	}
	m.remindersSent.WithLabelValues(outcome).Inc()
}

func (m *Metrics) HTTPRequest(method string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}
