// Prometheus instrumentation for the webhook pipeline. Labels are bounded:
// outcome/step/source come from small fixed sets, never from payload data.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// deliveriesTotal counts processed deliveries by pipeline outcome
	// (processed, ignored, test, insufficient_data).
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Inbound webhook deliveries by pipeline outcome.",
		},
		[]string{"outcome"},
	)

	// normalizationTotal counts which stage resolved the canonical status.
	normalizationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_normalization_total",
			Help: "Status normalizations by resolution source (event, alias, passthrough).",
		},
		[]string{"source"},
	)

	// reconcileFailures counts best-effort reconciliation steps that
	// failed and were skipped (customer, sale, checkout, cart).
	reconcileFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_reconcile_failures_total",
			Help: "Reconciliation steps that failed and were skipped.",
		},
		[]string{"step"},
	)

	// dispatchTotal counts conversion dispatch attempts by outcome.
	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_dispatch_total",
			Help: "Conversion dispatch attempts by outcome (ok, error).",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(deliveriesTotal, normalizationTotal, reconcileFailures, dispatchTotal)
}
