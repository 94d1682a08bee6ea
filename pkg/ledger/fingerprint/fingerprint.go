package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"

	"sentra-hq/anchor/pkg/ledger"
)

// Compute derives the content fingerprint for a piece of evidence: the
// SHA-256 digest over the evidence bytes followed by the canonical metadata
// string. Compute is a pure function; identical bytes and semantically
// identical metadata always yield the identical digest.
//
// Returns an InvalidInputError when the evidence bytes are empty or the
// metadata cannot be canonicalized.
func Compute(evidence []byte, meta Metadata) (ledger.Fingerprint, error) {
	var fp ledger.Fingerprint

	if len(evidence) == 0 {
		return fp, ledger.NewInvalidInputError("evidence", "must not be empty")
	}

	canonical, err := Canonicalize(meta)
	if err != nil {
		return fp, err
	}

	return digest(evidence, canonical), nil
}

// ComputeCanonical derives the fingerprint from evidence bytes and an
// already-canonicalized metadata string. Used by the reconciler, which stores
// canonical metadata rather than structured Metadata.
func ComputeCanonical(evidence []byte, canonical string) (ledger.Fingerprint, error) {
	var fp ledger.Fingerprint

	if len(evidence) == 0 {
		return fp, ledger.NewInvalidInputError("evidence", "must not be empty")
	}
	if canonical == "" {
		return fp, ledger.NewInvalidInputError("metadata", "must not be empty")
	}

	return digest(evidence, canonical), nil
}

// digest hashes evidence and canonical metadata into a fingerprint. The
// evidence length prefix keeps the evidence/metadata boundary unambiguous.
func digest(evidence []byte, canonical string) ledger.Fingerprint {
	h := sha256.New()

	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(evidence)))
	h.Write(length[:])
	h.Write(evidence)
	h.Write([]byte(canonical))

	var fp ledger.Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}
