// Package verify provides the read-only verification service used by audit
// and evidence-review consumers.
//
// A lookup consults the authoritative ledger first, then the local fallback
// store, so records still pending reconciliation remain verifiable. The
// Provisional flag on every result tells the consumer whether integrity has
// been externally anchored or is only locally asserted.
package verify
