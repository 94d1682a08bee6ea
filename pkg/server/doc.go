// Package server provides the HTTP service fronting the authoritative
// evidence ledger.
//
// # Endpoints
//
//   - POST /v1/register: register an evidence fingerprint. Returns 201 with
//     a receipt, 409 when the fingerprint is already registered, 400 on
//     invalid input.
//   - GET /v1/verify/{fingerprint}: look up a registered record. Returns
//     200 with the record or 404.
//   - GET /healthz: liveness probe.
//   - GET /readyz: readiness probe; checks that the ledger backend answers.
//   - GET /metrics: Prometheus metrics (when a collector is configured).
//
// # Middleware
//
// Requests pass through recovery, request ID, and logging middleware, in
// that order from the outside in. Every response carries an X-Request-ID
// header that correlates with the structured logs.
//
// The server shuts down gracefully on SIGINT/SIGTERM or context
// cancellation, bounded by the configured shutdown timeout.
package server
