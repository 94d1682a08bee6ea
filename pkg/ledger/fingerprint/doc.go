// Package fingerprint computes deterministic content fingerprints for
// captured evidence.
//
// A fingerprint is the SHA-256 digest over the evidence bytes and the
// canonical metadata string. Canonicalization sorts metadata keys
// lexicographically and normalizes the capture timestamp to RFC3339 UTC, so
// semantically identical metadata never produces different fingerprints due
// to incidental ordering or timezone differences.
//
// Computation is pure and side-effect free:
//
//	fp, err := fingerprint.Compute(frameBytes, fingerprint.Metadata{
//	    CameraID:   5,
//	    IncidentID: 123,
//	    CapturedAt: capturedAt,
//	})
package fingerprint
