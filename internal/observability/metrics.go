// Package observability holds the Prometheus metrics for the sync service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	webhookDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classroom_sync",
		Subsystem: "webhook",
		Name:      "deliveries_total",
		Help:      "Webhook deliveries received, by GitHub event type.",
	}, []string{"event"})

	reconcileResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classroom_sync",
		Subsystem: "reconciler",
		Name:      "reconciles_total",
		Help:      "Completed reconciliations, by result.",
	}, []string{"result"})

	reconcileErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classroom_sync",
		Subsystem: "reconciler",
		Name:      "errors_total",
		Help:      "Failed reconciliations, by error kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(webhookDeliveries, reconcileResults, reconcileErrors)
}

// RecordDelivery counts a received webhook delivery.
func RecordDelivery(event string) {
	webhookDeliveries.WithLabelValues(event).Inc()
}

// RecordReconcile counts a completed reconciliation.
func RecordReconcile(result string) {
	reconcileResults.WithLabelValues(result).Inc()
}

// RecordReconcileError counts a failed reconciliation.
func RecordReconcileError(kind string) {
	reconcileErrors.WithLabelValues(kind).Inc()
}
