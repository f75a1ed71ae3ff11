package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type engineMetrics struct {
	reassignTotal *prometheus.CounterVec
	rewriteRows   *prometheus.CounterVec
	cascadeSkips  prometheus.Counter
}

var engineMetricsSingleton = sync.OnceValue(func() *engineMetrics {
	return &engineMetrics{
		reassignTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procflow",
			Subsystem: "reassign",
			Name:      "total",
			Help:      "Total number of reassignment calls.",
		}, []string{"result"}),
		rewriteRows: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procflow",
			Subsystem: "reassign",
			Name:      "rewritten_rows_total",
			Help:      "Total number of rows redirected, per reference table.",
		}, []string{"table"}),
		cascadeSkips: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "procflow",
			Subsystem: "reassign",
			Name:      "cascade_skips_total",
			Help:      "Reassignments that changed no template owners and skipped the workflow cascade.",
		}),
	}
})

func getEngineMetrics() *engineMetrics {
	return engineMetricsSingleton()
}
