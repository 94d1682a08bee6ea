// Package remote implements the ledger.Ledger interface over the HTTP wire
// contract served by pkg/server.
//
// Registration requests carry a hex-encoded 32-byte fingerprint, the
// canonical metadata string, and the registrant identity; responses carry
// the ledger-assigned position, timestamp, and submission identifier.
//
// Error mapping:
//
//	HTTP 409              → ledger.AlreadyRegisteredError
//	HTTP 404              → ledger.NotFoundError
//	HTTP 400              → ledger.InvalidInputError
//	HTTP 5xx / transport  → ledger.UnavailableError (triggers local fallback)
package remote
