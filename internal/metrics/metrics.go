// Package metrics defines Prometheus metrics for the approval core.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "approvio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvio_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvio_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	ItemsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvio_items_created_total",
			Help: "Approval items created, by routing tier",
		},
		[]string{"tier"},
	)

	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvio_decisions_total",
			Help: "Decisions processed, by decision and result",
		},
		[]string{"decision", "result"},
	)

	BulkItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvio_bulk_items_total",
			Help: "Items processed by bulk decisions, by outcome",
		},
		[]string{"outcome"},
	)

	EscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvio_escalations_total",
			Help: "Escalation attempts, by result",
		},
		[]string{"result"},
	)

	TenantMismatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "approvio_tenant_mismatch_total",
			Help: "Cross-tenant access attempts rejected",
		},
	)

	EventsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvio_events_consumed_total",
			Help: "Inbound bus events, by subject and outcome",
		},
		[]string{"subject", "outcome"},
	)

	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvio_events_published_total",
			Help: "Outbound bus events, by subject and outcome",
		},
		[]string{"subject", "outcome"},
	)

	QuarantinedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvio_quarantined_events_total",
			Help: "Inbound events parked in quarantine, by reason",
		},
		[]string{"reason"},
	)

	AuditQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "approvio_audit_queue_depth",
			Help: "Current anomaly audit queue depth",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		ItemsCreatedTotal, DecisionsTotal, BulkItemsTotal,
		EscalationsTotal, TenantMismatchTotal,
		EventsConsumedTotal, EventsPublishedTotal, QuarantinedTotal,
		AuditQueueDepth,
	)
}
