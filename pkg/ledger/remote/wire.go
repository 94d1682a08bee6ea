package remote

import "time"

// RegisterRequest is the wire form of a registration request.
// The fingerprint is hex-encoded (64 characters, 32 bytes).
type RegisterRequest struct {
	Fingerprint string `json:"fingerprint"`
	Metadata    string `json:"metadata"`
	Registrant  string `json:"registrant"`
}

// RegisterResponse is the wire form of a successful registration receipt.
type RegisterResponse struct {
	Fingerprint  string    `json:"fingerprint"`
	Position     uint64    `json:"position"`
	RegisteredAt time.Time `json:"registered_at"`
	SubmissionID string    `json:"submission_id"`
}

// RecordResponse is the wire form of a verified ledger record.
type RecordResponse struct {
	Fingerprint  string    `json:"fingerprint"`
	Metadata     string    `json:"metadata"`
	Registrant   string    `json:"registrant"`
	RegisteredAt time.Time `json:"registered_at"`
	Position     uint64    `json:"position"`
	SubmissionID string    `json:"submission_id"`
}

// ErrorResponse is the wire form of a ledger service error.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried in ErrorResponse.Code.
const (
	CodeAlreadyRegistered = "already_registered"
	CodeNotFound          = "not_found"
	CodeInvalidInput      = "invalid_input"
	CodeInternal          = "internal"
)
