// Package metrics exposes Prometheus metrics for the node server and the
// client-side fan-out paths, served on a dedicated listen address.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RecordsStored counts partial records accepted by this node.
	RecordsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vault_node_records_stored_total",
		Help: "Partial records stored by this node.",
	})

	// FanoutOperations counts client-side fan-out calls by operation and
	// outcome ("ok", "degraded", "quorum_failure", "error").
	FanoutOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_fanout_operations_total",
		Help: "Fan-out operations issued by the client, by operation and outcome.",
	}, []string{"operation", "outcome"})

	// UnreconstructableRecords counts records that a read found on fewer
	// than the full node set.
	UnreconstructableRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vault_unreconstructable_records_total",
		Help: "Records observed with an incomplete share set during reads.",
	})
)

// MetricsServer serves the Prometheus scrape endpoint.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr.
func New(addr string) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// ListenAndServe blocks serving the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
