package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"
)

// FingerprintSize is the size of an evidence fingerprint in bytes (SHA-256).
const FingerprintSize = 32

// MaxRegistrantLen is the maximum length of a registrant identity string.
const MaxRegistrantLen = 64

// Fingerprint is a fixed-width content digest identifying a piece of evidence.
// It is the primary key of the ledger: one fingerprint maps to at most one record.
type Fingerprint [FingerprintSize]byte

// ParseFingerprint decodes a hex-encoded fingerprint.
// The input must be exactly 64 hex characters (32 bytes).
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fp, NewInvalidInputError("fingerprint", fmt.Sprintf("not valid hex: %v", err))
	}
	if len(raw) != FingerprintSize {
		return fp, NewInvalidInputError("fingerprint",
			fmt.Sprintf("expected %d bytes, got %d", FingerprintSize, len(raw)))
	}
	copy(fp[:], raw)
	return fp, nil
}

// Hex returns the lowercase hex encoding of the fingerprint.
func (fp Fingerprint) Hex() string {
	return hex.EncodeToString(fp[:])
}

// String implements fmt.Stringer.
func (fp Fingerprint) String() string {
	return fp.Hex()
}

// IsZero reports whether the fingerprint is all zero bytes.
func (fp Fingerprint) IsZero() bool {
	return fp == Fingerprint{}
}

// Record is a single registered piece of evidence as stored by the ledger.
// Records are immutable: they are created exactly once by a successful
// Register call and are never updated or deleted.
type Record struct {
	// Fingerprint is the content digest, unique across the ledger.
	Fingerprint Fingerprint `json:"fingerprint"`

	// Metadata is the canonical metadata string the fingerprint was
	// computed over. Immutable once set.
	Metadata string `json:"metadata"`

	// Registrant is the identity of the caller that performed registration,
	// as observed by the ledger at registration time.
	Registrant string `json:"registrant"`

	// RegisteredAt is the ledger-assigned registration timestamp.
	// The ledger's own clock is authoritative; caller-supplied times are
	// never trusted here.
	RegisteredAt time.Time `json:"registered_at"`

	// Position is the ledger-assigned sequence number. Positions are
	// strictly increasing in registration order and are never reused.
	Position uint64 `json:"position"`

	// SubmissionID uniquely identifies the registration that created this
	// record. It is assigned by the ledger and is distinct for every
	// registration, never a reference to a prior record.
	SubmissionID string `json:"submission_id"`
}

// Receipt is the proof returned to a caller on successful registration.
type Receipt struct {
	Fingerprint  Fingerprint `json:"fingerprint"`
	Position     uint64      `json:"position"`
	RegisteredAt time.Time   `json:"registered_at"`
	SubmissionID string      `json:"submission_id"`
}

// ReceiptFromRecord builds the receipt corresponding to a stored record.
func ReceiptFromRecord(rec *Record) *Receipt {
	return &Receipt{
		Fingerprint:  rec.Fingerprint,
		Position:     rec.Position,
		RegisteredAt: rec.RegisteredAt,
		SubmissionID: rec.SubmissionID,
	}
}

// Ledger is the authoritative append-only store of evidence fingerprints.
// Implementations must be safe for concurrent use.
type Ledger interface {
	// Register atomically records a fingerprint. The presence check and the
	// insert are a single atomic operation: under concurrent calls with the
	// same fingerprint exactly one succeeds and the rest observe an
	// AlreadyRegisteredError. Position, RegisteredAt, and SubmissionID are
	// assigned by the ledger.
	Register(ctx context.Context, fp Fingerprint, metadata, registrant string) (*Receipt, error)

	// Verify returns the record for a fingerprint, or a NotFoundError.
	// Verify never mutates state.
	Verify(ctx context.Context, fp Fingerprint) (*Record, error)

	// Close releases any resources held by the ledger backend.
	Close() error
}

// ValidateRegistrant checks a registrant identity string before it reaches
// a ledger backend.
func ValidateRegistrant(registrant string) error {
	if registrant == "" {
		return NewInvalidInputError("registrant", "must not be empty")
	}
	if len(registrant) > MaxRegistrantLen {
		return NewInvalidInputError("registrant",
			fmt.Sprintf("length %d exceeds maximum of %d", len(registrant), MaxRegistrantLen))
	}
	return nil
}
