// Package ledger defines the core types and contracts of the evidence
// integrity ledger: an append-only, tamper-evident store of content
// fingerprints for captured surveillance evidence.
//
// # Architecture
//
// The ledger subsystem consists of four layers:
//
//  1. Fingerprint computation - deterministic digest over evidence bytes
//     and canonical metadata (pkg/ledger/fingerprint)
//  2. Ledger backends - authoritative append-only storage enforcing
//     fingerprint uniqueness (pkg/ledger/store, pkg/ledger/remote)
//  3. Registration client - orchestrates fingerprinting and registration
//     with local fallback when the ledger is unreachable
//     (pkg/ledger/client, pkg/ledger/fallback, pkg/ledger/reconcile)
//  4. Verification service - read-only lookup covering both the ledger and
//     records still pending reconciliation (pkg/ledger/verify)
//
// # Data Flow
//
//	Capture pipeline
//	     ↓
//	fingerprint.Compute
//	     ↓
//	client.Client.Submit
//	     ↓
//	Ledger.Register ──unreachable──→ fallback.Store (pending)
//	     ↓                                ↓
//	Receipt                      reconcile.Reconciler (background)
//
// # Invariants
//
// A fingerprint, once registered, can never be re-registered, modified, or
// removed. The per-fingerprint state machine has exactly two states:
// Unregistered (implicit, absence) and Registered (terminal).
//
// Positions are assigned by the ledger and are strictly increasing across
// all records in registration order; no two records share a position.
// Registrant and registration timestamp are likewise ledger-assigned; the
// caller's claim is never authoritative.
//
// # Error Taxonomy
//
//   - InvalidInputError: malformed evidence or metadata, rejected before any
//     ledger interaction
//   - AlreadyRegisteredError: fingerprint already present; success for
//     legitimate retries, an anomaly otherwise
//   - NotFoundError: verification miss, a normal outcome
//   - UnavailableError: transient transport failure; absorbed by the local
//     fallback path, never surfaced to the capture pipeline
//   - CorruptReceiptError: local/remote mismatch found during
//     reconciliation; escalated for operator review, never retried
package ledger
