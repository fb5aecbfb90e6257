// Package metrics declares the Prometheus collectors exported by terra.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// VerificationsTotal counts finished pipeline runs by terminal status,
	// plus "skipped" for runs on submissions that were no longer pending.
	VerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "verification",
		Name:      "runs_total",
		Help:      "Total number of verification pipeline runs, labeled by outcome.",
	}, []string{"outcome"})

	// StageDurationSeconds is time spent per pipeline stage.
	StageDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "terra",
		Subsystem: "verification",
		Name:      "stage_duration_seconds",
		Help:      "Time spent in each verification stage.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"stage"})

	// RunDurationSeconds is end-to-end time per pipeline run.
	RunDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "terra",
		Subsystem: "verification",
		Name:      "run_duration_seconds",
		Help:      "End-to-end verification pipeline run time.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60, 120},
	})

	AuditFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "verification",
		Name:      "audit_failures_total",
		Help:      "Total number of audit log appends that failed and were skipped.",
	})

	LedgerConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "ledger",
		Name:      "conflicts_total",
		Help:      "Total number of profile update attempts lost to a concurrent writer.",
	})

	// BrokerConnected is 1 when the subscriber considers itself connected.
	BrokerConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "terra",
		Subsystem: "events",
		Name:      "rabbitmq_connected",
		Help:      "Whether the submission event subscriber is connected (best-effort).",
	})

	// BrokerLastDeliverySeconds is a unix timestamp of the last delivery.
	BrokerLastDeliverySeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "terra",
		Subsystem: "events",
		Name:      "rabbitmq_last_delivery_timestamp_seconds",
		Help:      "Unix timestamp (seconds) of the last delivery observed by the subscriber.",
	})

	WorkerInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "terra",
		Subsystem: "events",
		Name:      "worker_in_flight",
		Help:      "Current number of deliveries being processed by worker goroutines.",
	})

	// DeliveriesTotal counts handled deliveries by result: ack, requeue, drop.
	DeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "events",
		Name:      "deliveries_total",
		Help:      "Total number of deliveries handled by the subscriber, labeled by result.",
	}, []string{"result"})

	// MaintenanceRunsTotal counts scheduled job runs by job and result.
	MaintenanceRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "maintenance",
		Name:      "runs_total",
		Help:      "Total number of scheduled maintenance job runs, labeled by job and result.",
	}, []string{"job", "result"})

	AuditPurgedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "maintenance",
		Name:      "audit_purged_total",
		Help:      "Total number of audit log entries removed by retention.",
	})
)

// Register registers terra metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			VerificationsTotal,
			StageDurationSeconds,
			RunDurationSeconds,
			AuditFailuresTotal,
			LedgerConflictsTotal,
			BrokerConnected,
			BrokerLastDeliverySeconds,
			WorkerInFlight,
			DeliveriesTotal,
			MaintenanceRunsTotal,
			AuditPurgedTotal,
		)
	})
}

// ObserveStage records the duration of a stage that started at start.
func ObserveStage(stage string, start time.Time) {
	StageDurationSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
