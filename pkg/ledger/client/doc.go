// Package client implements the registration client that the capture
// pipeline calls to anchor evidence.
//
// Submit computes the content fingerprint, registers it with the ledger
// under a bounded timeout, and classifies the result into exactly three
// caller-visible outcomes:
//
//   - Anchored: the ledger issued a receipt
//   - PendingLocal: the ledger was unreachable; the record was written to
//     the local fallback store for background reconciliation
//   - Rejected: structurally invalid input, or a fingerprint collision with
//     a record from a different registrant
//
// Duplicate responses from the ledger are disambiguated by request
// identity: the client tracks which fingerprints it has itself attempted,
// so a legitimate retry is treated as an idempotent success while a foreign
// duplicate is surfaced as a collision anomaly.
package client
