package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query/execute counters, exposed for an embedder that wants to scrape
// them (§5's resource model makes no promises about observability, but
// every manager built on the teacher's patterns exposes its own small
// metric surface this way).
var (
	metricQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "familyvault",
		Subsystem: "store",
		Name:      "queries_total",
	}, []string{"op"})

	metricQueryErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "familyvault",
		Subsystem: "store",
		Name:      "query_errors_total",
	}, []string{"op"})
)

func init() {
	for _, op := range []string{"execute", "query", "query_scalar", "tx_execute", "tx_query", "tx_query_scalar"} {
		metricQueriesTotal.WithLabelValues(op)
		metricQueryErrorsTotal.WithLabelValues(op)
	}
}
