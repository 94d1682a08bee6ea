// Package metrics provides Prometheus metrics for the evidence integrity
// ledger: registration outcomes, register latency, fallback store depth,
// reconciliation cycles, and integrity anomalies.
//
// All recording methods are nil-safe so components can run without a
// collector in tests.
package metrics
