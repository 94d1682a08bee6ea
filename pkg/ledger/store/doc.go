// Package store provides the authoritative ledger storage backends.
//
// Two backends implement the ledger.Ledger interface:
//
//   - Memory: mutex-guarded in-memory map, for tests and embedded use
//   - SQLite: durable single-node backend with WAL mode and schema
//     versioning; the fingerprint unique constraint makes registration an
//     atomic check-and-insert, and the AUTOINCREMENT position column
//     guarantees strictly increasing, never-reused sequence numbers
//
// Both backends assign position, registration timestamp, and a unique
// submission identifier at registration time; caller-supplied values are
// never trusted for these fields.
package store
