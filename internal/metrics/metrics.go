// Package metrics exposes Prometheus instrumentation for ledger
// operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	amounts           *prometheus.HistogramVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		operationsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_operations_total",
			Help: "Ledger operations by kind and outcome",
		}, []string{"kind", "outcome"}),
		operationDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wallet_operation_duration_seconds",
			Help:    "Time spent committing a ledger operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		amounts: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wallet_operation_amount",
			Help:    "Amounts of successful ledger operations in currency units",
			Buckets: []float64{10, 100, 1000, 10000, 100000},
		}, []string{"kind"}),
	}
}

// Observe records one finished ledger operation. Amount is counted
// only for successful outcomes.
func (c *Collector) Observe(kind string, outcome string, amount float64, elapsed time.Duration) {
	c.operationsTotal.WithLabelValues(kind, outcome).Inc()
	c.operationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())

	if outcome == "success" {
		c.amounts.WithLabelValues(kind).Observe(amount)
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
