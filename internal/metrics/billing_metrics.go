// Package metrics expone los contadores Prometheus del motor de cobranza.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BillingMetrics métricas observables de cada vuelta del motor
type BillingMetrics interface {
	RecordTick(duration time.Duration)
	RecordInvoicesGenerated(count int)
	RecordNotificationsSent(count int)
	RecordNotificationsFailed(count int)
	RecordSuspensions(count int)
	RecordReconnections(count int)
	RecordAlertsRaised(count int)
	RecordPaymentsIngested(count int)
	RecordStepFailure(step string)
}

type billingMetrics struct {
	tickDuration        prometheus.Histogram
	invoicesGenerated   prometheus.Counter
	notificationsSent   prometheus.Counter
	notificationsFailed prometheus.Counter
	suspensions         prometheus.Counter
	reconnections       prometheus.Counter
	alertsRaised        prometheus.Counter
	paymentsIngested    prometheus.Counter
	stepFailures        *prometheus.CounterVec
}

// NewBillingMetrics registra las métricas del motor en el registro dado
func NewBillingMetrics(registry *prometheus.Registry) BillingMetrics {
	return &billingMetrics{
		tickDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "billing_tick_duration_seconds",
			Help:    "Duration of one full engine tick",
			Buckets: prometheus.DefBuckets,
		}),
		invoicesGenerated: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "billing_invoices_generated_total",
			Help: "Total invoices generated by the engine",
		}),
		notificationsSent: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "billing_notifications_sent_total",
			Help: "Total collection notifications delivered",
		}),
		notificationsFailed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "billing_notifications_failed_total",
			Help: "Total collection notifications that failed to deliver",
		}),
		suspensions: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "billing_suspensions_total",
			Help: "Total service suspensions executed",
		}),
		reconnections: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "billing_reconnections_total",
			Help: "Total service reconnections executed",
		}),
		alertsRaised: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "billing_manager_alerts_total",
			Help: "Total manager alerts raised",
		}),
		paymentsIngested: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "billing_payments_ingested_total",
			Help: "Total third-party payment report entries applied",
		}),
		stepFailures: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "billing_step_failures_total",
			Help: "Failures per engine step, isolated per subscription",
		}, []string{"step"}),
	}
}

func (m *billingMetrics) RecordTick(duration time.Duration) {
	m.tickDuration.Observe(duration.Seconds())
}

func (m *billingMetrics) RecordInvoicesGenerated(count int) {
	m.invoicesGenerated.Add(float64(count))
}

func (m *billingMetrics) RecordNotificationsSent(count int) {
	m.notificationsSent.Add(float64(count))
}

func (m *billingMetrics) RecordNotificationsFailed(count int) {
	m.notificationsFailed.Add(float64(count))
}

func (m *billingMetrics) RecordSuspensions(count int) {
	m.suspensions.Add(float64(count))
}

func (m *billingMetrics) RecordReconnections(count int) {
	m.reconnections.Add(float64(count))
}

func (m *billingMetrics) RecordAlertsRaised(count int) {
	m.alertsRaised.Add(float64(count))
}

func (m *billingMetrics) RecordPaymentsIngested(count int) {
	m.paymentsIngested.Add(float64(count))
}

func (m *billingMetrics) RecordStepFailure(step string) {
	m.stepFailures.WithLabelValues(step).Inc()
}
