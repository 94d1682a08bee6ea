// Package reconcile replays locally queued registrations against the remote
// ledger until every record is anchored or flagged for operator review.
//
// Each cycle claims a batch of pending records from the fallback store and
// registers them under bounded exponential backoff. Records the ledger
// already knows are confirmed by comparing stored metadata: a match is an
// idempotent success, a mismatch is a corrupt receipt — escalated, never
// retried, never discarded. Records that exhaust their cycle budget are
// flagged for review rather than dropped.
//
// Cycles run on a cron schedule and immediately after the registration
// client records a fallback write (via Scheduler.Kick).
package reconcile
