// Package fallback provides the durable local store for registrations that
// could not reach the remote ledger.
//
// When the registration client observes a transient ledger failure it writes
// the record here and returns a PendingLocal outcome; the background
// reconciler later replays pending records against the remote ledger.
//
// Records move through three states:
//
//	pending ──anchored by reconciler──→ anchored
//	   │
//	   └──attempt budget exhausted or metadata mismatch──→ review
//
// Anchored rows are kept for audit; review rows are never retried
// automatically and never dropped — they wait for an operator.
//
// The store is the only resource shared mutably by the registration client
// and the reconciler. Claim marks records in flight inside a transaction, so
// a fingerprint is never reconciled twice concurrently. Claims left behind
// by a crashed process are cleared on the next Open.
package fallback
