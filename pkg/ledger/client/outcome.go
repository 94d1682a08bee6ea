package client

import "sentra-hq/anchor/pkg/ledger"

// Status classifies the result of a Submit call. The capture pipeline only
// ever sees these three statuses; raw transport errors never escape the
// client.
type Status string

const (
	// StatusAnchored means the registration reached the ledger and a
	// receipt was issued.
	StatusAnchored Status = "anchored"

	// StatusPendingLocal means the ledger was unreachable; the record was
	// written to the local fallback store and will be reconciled in the
	// background.
	StatusPendingLocal Status = "pending_local"

	// StatusRejected means the input was structurally invalid or the
	// fingerprint collided with a record from a different registrant.
	// The caller must fix the input and resubmit.
	StatusRejected Status = "rejected"
)

// Outcome is the result of submitting a piece of evidence for registration.
type Outcome struct {
	Status Status

	// Fingerprint is the computed content fingerprint, set for every
	// outcome where computation succeeded.
	Fingerprint ledger.Fingerprint

	// Receipt is the ledger receipt. Set when Status is StatusAnchored.
	Receipt *ledger.Receipt

	// LocalReceiptID identifies the fallback store record. Set when
	// Status is StatusPendingLocal.
	LocalReceiptID string

	// Reason describes a rejection. Set when Status is StatusRejected.
	Reason string

	// Idempotent is true when the ledger reported the fingerprint as
	// already registered and the client recognized the call as a retry of
	// its own earlier submission.
	Idempotent bool

	// Collision is true when the ledger reported the fingerprint as
	// already registered by a different registrant: either a hash
	// collision or an upstream logic bug. Surfaced, never swallowed.
	Collision bool
}
