package records

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "records_operations_total",
		Help: "Coordinator operations by outcome.",
	}, []string{"operation", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "records_operation_duration_seconds",
		Help:    "Coordinator operation latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	secondaryWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "records_secondary_write_failures_total",
		Help: "History and audit writes that failed after a successful record write.",
	}, []string{"step"})

	reportCategoryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "records_report_category_failures_total",
		Help: "Report categories that degraded to empty because a store read failed.",
	}, []string{"category"})
)

func observeOutcome(operation string, out *Outcome, err error) {
	outcome := "success"
	switch {
	case err != nil:
		outcome = string(KindOf(err))
	case out.Partial():
		outcome = "partial"
	}
	operationsTotal.WithLabelValues(operation, outcome).Inc()
}
