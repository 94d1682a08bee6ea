package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks metrics for the evidence integrity ledger.
//
// Metrics:
//   - anchor_registrations_total: registrations by outcome (anchored, pending_local, rejected)
//   - anchor_register_duration_seconds: ledger register call latency
//   - anchor_pending_records: fallback store records by state
//   - anchor_reconcile_cycles_total: reconciliation cycles by result
//   - anchor_anomalies_total: integrity anomalies by kind (collision, corrupt_receipt)
type LedgerMetrics struct {
	registrationsTotal *prometheus.CounterVec
	registerDuration   prometheus.Histogram
	pendingRecords     *prometheus.GaugeVec
	reconcileCycles    *prometheus.CounterVec
	anomaliesTotal     *prometheus.CounterVec
}

// NewLedgerMetrics creates and registers ledger metrics with the provided
// registry.
func NewLedgerMetrics(registry *prometheus.Registry) *LedgerMetrics {
	m := &LedgerMetrics{
		registrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "anchor",
				Name:      "registrations_total",
				Help:      "Total number of evidence registrations by outcome",
			},
			[]string{"outcome"},
		),

		registerDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "anchor",
				Name:      "register_duration_seconds",
				Help:      "Duration of ledger register calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		pendingRecords: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "anchor",
				Name:      "pending_records",
				Help:      "Number of fallback store records by state",
			},
			[]string{"state"},
		),

		reconcileCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "anchor",
				Name:      "reconcile_cycles_total",
				Help:      "Total number of reconciliation cycles by result",
			},
			[]string{"result"},
		),

		anomaliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "anchor",
				Name:      "anomalies_total",
				Help:      "Total number of integrity anomalies by kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.registrationsTotal,
		m.registerDuration,
		m.pendingRecords,
		m.reconcileCycles,
		m.anomaliesTotal,
	)

	return m
}

// RecordRegistration counts a registration outcome. Outcome values:
// "anchored", "pending_local", "rejected".
func (m *LedgerMetrics) RecordRegistration(outcome string) {
	if m == nil {
		return
	}
	m.registrationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRegisterDuration records the latency of a ledger register call.
func (m *LedgerMetrics) ObserveRegisterDuration(seconds float64) {
	if m == nil {
		return
	}
	m.registerDuration.Observe(seconds)
}

// SetPendingRecords updates the fallback store gauge for a state.
func (m *LedgerMetrics) SetPendingRecords(state string, count float64) {
	if m == nil {
		return
	}
	m.pendingRecords.WithLabelValues(state).Set(count)
}

// RecordReconcileCycle counts a reconciliation cycle result. Result values:
// "clean", "partial", "failed".
func (m *LedgerMetrics) RecordReconcileCycle(result string) {
	if m == nil {
		return
	}
	m.reconcileCycles.WithLabelValues(result).Inc()
}

// RecordAnomaly counts an integrity anomaly. Kind values: "collision",
// "corrupt_receipt".
func (m *LedgerMetrics) RecordAnomaly(kind string) {
	if m == nil {
		return
	}
	m.anomaliesTotal.WithLabelValues(kind).Inc()
}
