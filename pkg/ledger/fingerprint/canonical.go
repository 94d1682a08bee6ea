package fingerprint

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"sentra-hq/anchor/pkg/ledger"
)

// Metadata describes a captured piece of evidence. It is canonicalized to a
// stable byte string before fingerprinting, so two semantically identical
// Metadata values always produce the same canonical form regardless of how
// they were assembled.
type Metadata struct {
	// CameraID identifies the camera that produced the evidence.
	CameraID int64 `json:"camera_id"`

	// IncidentID identifies the incident the evidence belongs to.
	IncidentID int64 `json:"incident_id"`

	// CapturedAt is when the evidence was captured. Normalized to UTC
	// during canonicalization.
	CapturedAt time.Time `json:"captured_at"`

	// Extra holds optional descriptive annotations (detector name,
	// severity, frame index). Keys must not collide with the reserved
	// metadata fields.
	Extra map[string]string `json:"extra,omitempty"`
}

// reservedKeys are the metadata keys owned by the fixed fields above.
var reservedKeys = map[string]bool{
	"camera_id":   true,
	"incident_id": true,
	"captured_at": true,
}

// Canonicalize produces the canonical metadata string: a JSON object with
// lexicographically sorted keys, no insignificant whitespace, and the capture
// time normalized to RFC3339 UTC. Stable byte ordering is a correctness
// requirement, not an optimization: the canonical string feeds the
// fingerprint, and incidental ordering differences would split identical
// evidence into distinct fingerprints.
func Canonicalize(meta Metadata) (string, error) {
	if meta.CameraID <= 0 {
		return "", ledger.NewInvalidInputError("camera_id", "must be positive")
	}
	if meta.IncidentID <= 0 {
		return "", ledger.NewInvalidInputError("incident_id", "must be positive")
	}
	if meta.CapturedAt.IsZero() {
		return "", ledger.NewInvalidInputError("captured_at", "must be set")
	}

	fields := map[string]any{
		"camera_id":   meta.CameraID,
		"incident_id": meta.IncidentID,
		"captured_at": meta.CapturedAt.UTC().Format(time.RFC3339Nano),
	}

	for key, value := range meta.Extra {
		if key == "" {
			return "", ledger.NewInvalidInputError("extra", "empty metadata key")
		}
		if reservedKeys[key] {
			return "", ledger.NewInvalidInputError("extra",
				fmt.Sprintf("key %q collides with a reserved metadata field", key))
		}
		if !utf8.ValidString(key) || !utf8.ValidString(value) {
			return "", ledger.NewInvalidInputError("extra",
				fmt.Sprintf("key %q carries invalid UTF-8", key))
		}
		fields[key] = value
	}

	// encoding/json marshals map keys in sorted order, which is exactly the
	// canonical ordering we need.
	data, err := json.Marshal(fields)
	if err != nil {
		return "", ledger.NewInvalidInputError("metadata", fmt.Sprintf("not encodable: %v", err))
	}

	return string(data), nil
}

// ParseCanonical decodes a canonical metadata string back into Metadata.
// Used by verification consumers and the capture watcher's sidecar loader.
func ParseCanonical(canonical string) (Metadata, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(canonical), &raw); err != nil {
		return Metadata{}, ledger.NewInvalidInputError("metadata", fmt.Sprintf("not valid JSON: %v", err))
	}

	meta := Metadata{}

	cameraID, ok := raw["camera_id"].(float64)
	if !ok {
		return Metadata{}, ledger.NewInvalidInputError("camera_id", "missing or not a number")
	}
	meta.CameraID = int64(cameraID)

	incidentID, ok := raw["incident_id"].(float64)
	if !ok {
		return Metadata{}, ledger.NewInvalidInputError("incident_id", "missing or not a number")
	}
	meta.IncidentID = int64(incidentID)

	capturedAt, ok := raw["captured_at"].(string)
	if !ok {
		return Metadata{}, ledger.NewInvalidInputError("captured_at", "missing or not a string")
	}
	ts, err := time.Parse(time.RFC3339Nano, capturedAt)
	if err != nil {
		return Metadata{}, ledger.NewInvalidInputError("captured_at", fmt.Sprintf("not RFC3339: %v", err))
	}
	meta.CapturedAt = ts

	for key, value := range raw {
		if reservedKeys[key] {
			continue
		}
		str, ok := value.(string)
		if !ok {
			return Metadata{}, ledger.NewInvalidInputError(key, "extra fields must be strings")
		}
		if meta.Extra == nil {
			meta.Extra = make(map[string]string)
		}
		meta.Extra[key] = str
	}

	return meta, nil
}
