package filetransfer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bytes moved across Fetch/serveRequest, split by direction so an
// embedder scraping this process can tell upload from download load.
var (
	metricBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "familyvault",
		Subsystem: "filetransfer",
		Name:      "bytes_total",
	}, []string{"direction"})

	metricTransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "familyvault",
		Subsystem: "filetransfer",
		Name:      "transfers_total",
	}, []string{"direction", "result"})
)

func init() {
	for _, dir := range []string{"sent", "received"} {
		metricBytesTotal.WithLabelValues(dir)
	}
	metricTransfersTotal.WithLabelValues("sent", "ok")
	metricTransfersTotal.WithLabelValues("sent", "error")
	metricTransfersTotal.WithLabelValues("received", "ok")
	metricTransfersTotal.WithLabelValues("received", "error")
}
