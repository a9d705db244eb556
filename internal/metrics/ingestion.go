package metrics

import "github.com/prometheus/client_golang/prometheus"

// Bootstrap ingestion Prometheus metrics.
var (
	IngestionRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Name:      "ingestion_records_total",
			Help:      "Records seen by the bootstrap worker",
		},
		[]string{"source", "outcome"}, // "embedded" / "skipped" / "error"
	)

	IngestionBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Name:      "ingestion_batches_total",
			Help:      "Batches processed by the bootstrap worker",
		},
		[]string{"source", "status"}, // "ok" / "error" / "resumed_skip"
	)

	IngestionProgressRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docpipe",
			Name:      "ingestion_progress_ratio",
			Help:      "Fraction of the source stream processed (0..1), when the total is known",
		},
		[]string{"source"},
	)

	IngestionCircuitTripsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Name:      "ingestion_circuit_trips_total",
			Help:      "Circuit breaker trips per source",
		},
		[]string{"source"},
	)
)

var ingMetricsRegistered bool

// RegisterIngestionMetrics registers ingestion metrics. Must be called once from main.
func RegisterIngestionMetrics() {
	if ingMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestionRecordsTotal)
	prometheus.MustRegister(IngestionBatchesTotal)
	prometheus.MustRegister(IngestionProgressRatio)
	prometheus.MustRegister(IngestionCircuitTripsTotal)
	ingMetricsRegistered = true
}
