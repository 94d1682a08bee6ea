package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the Prometheus registry for the ledger service.
type Collector struct {
	registry *prometheus.Registry

	// Ledger holds the ledger-specific metrics.
	Ledger *LedgerMetrics
}

// NewCollector creates a registry with process and Go runtime collectors
// plus the ledger metrics.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collector{
		registry: registry,
		Ledger:   NewLedgerMetrics(registry),
	}
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint,
// typically mounted at "/metrics".
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}

// Registry exposes the underlying registry for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
