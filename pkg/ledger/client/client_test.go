package client

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"sentra-hq/anchor/pkg/ledger"
	"sentra-hq/anchor/pkg/ledger/fallback"
	"sentra-hq/anchor/pkg/ledger/fingerprint"
	"sentra-hq/anchor/pkg/ledger/store"
)

// downLedger simulates an unreachable ledger service.
type downLedger struct{}

func (d *downLedger) Register(ctx context.Context, fp ledger.Fingerprint, metadata, registrant string) (*ledger.Receipt, error) {
	return nil, ledger.NewUnavailableError("register", errors.New("connection refused"))
}

func (d *downLedger) Verify(ctx context.Context, fp ledger.Fingerprint) (*ledger.Record, error) {
	return nil, ledger.NewUnavailableError("verify", errors.New("connection refused"))
}

func (d *downLedger) Close() error { return nil }

func testMetadata() fingerprint.Metadata {
	return fingerprint.Metadata{
		CameraID:   12,
		IncidentID: 7,
		CapturedAt: time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC),
	}
}

func openTestFallback(t *testing.T) *fallback.Store {
	t.Helper()

	fb, err := fallback.Open(filepath.Join(t.TempDir(), "fallback.db"))
	if err != nil {
		t.Fatalf("Failed to open fallback store: %v", err)
	}
	t.Cleanup(func() { fb.Close() })
	return fb
}

// TestClient_SubmitAnchored tests the happy path against a reachable ledger.
func TestClient_SubmitAnchored(t *testing.T) {
	l := store.NewMemory()
	defer l.Close()
	fb := openTestFallback(t)

	c := New(l, fb, nil, nil)
	outcome, err := c.Submit(context.Background(), []byte("frame data"), testMetadata(), "unit-42")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	if outcome.Status != StatusAnchored {
		t.Fatalf("Expected anchored outcome, got %s (%s)", outcome.Status, outcome.Reason)
	}
	if outcome.Receipt == nil || outcome.Receipt.Position == 0 {
		t.Error("Anchored outcome missing receipt")
	}
	if outcome.Idempotent {
		t.Error("Fresh registration marked idempotent")
	}

	// The ledger must hold the record under the reported fingerprint.
	rec, err := l.Verify(context.Background(), outcome.Fingerprint)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if rec.Registrant != "unit-42" {
		t.Errorf("Wrong registrant stored: %s", rec.Registrant)
	}
}

// TestClient_SubmitRejectsInvalidInput tests synchronous structural rejection.
func TestClient_SubmitRejectsInvalidInput(t *testing.T) {
	l := store.NewMemory()
	defer l.Close()
	fb := openTestFallback(t)
	c := New(l, fb, nil, nil)

	tests := []struct {
		name       string
		evidence   []byte
		meta       fingerprint.Metadata
		registrant string
	}{
		{"empty registrant", []byte("data"), testMetadata(), ""},
		{"empty evidence", nil, testMetadata(), "unit-42"},
		{"invalid metadata", []byte("data"), fingerprint.Metadata{}, "unit-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := c.Submit(context.Background(), tt.evidence, tt.meta, tt.registrant)
			if err != nil {
				t.Fatalf("Submit() returned hard error: %v", err)
			}
			if outcome.Status != StatusRejected {
				t.Errorf("Expected rejected outcome, got %s", outcome.Status)
			}
			if outcome.Reason == "" {
				t.Error("Rejected outcome missing reason")
			}
		})
	}
}

// TestClient_SubmitFallsBackWhenUnavailable tests that ledger outages yield
// a PendingLocal outcome with a durable local record, not an error.
func TestClient_SubmitFallsBackWhenUnavailable(t *testing.T) {
	fb := openTestFallback(t)
	c := New(&downLedger{}, fb, nil, nil)

	kicked := make(chan struct{}, 1)
	c.SetReconcileKick(func() {
		select {
		case kicked <- struct{}{}:
		default:
		}
	})

	outcome, err := c.Submit(context.Background(), []byte("frame data"), testMetadata(), "unit-42")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	if outcome.Status != StatusPendingLocal {
		t.Fatalf("Expected pending-local outcome, got %s", outcome.Status)
	}
	if outcome.LocalReceiptID == "" {
		t.Error("PendingLocal outcome missing local receipt ID")
	}

	// The record must be durably queued.
	pending, err := fb.Get(context.Background(), outcome.Fingerprint)
	if err != nil {
		t.Fatalf("Fallback record missing: %v", err)
	}
	if pending.Registrant != "unit-42" || pending.State != fallback.StatePending {
		t.Errorf("Fallback record wrong: %+v", pending)
	}

	select {
	case <-kicked:
	case <-time.After(time.Second):
		t.Error("Fallback write did not kick the reconciler")
	}
}

// TestClient_ResubmitDuringOutageIsIdempotent tests that resubmitting the
// same evidence during an outage reuses the queued record.
func TestClient_ResubmitDuringOutageIsIdempotent(t *testing.T) {
	fb := openTestFallback(t)
	c := New(&downLedger{}, fb, nil, nil)

	ctx := context.Background()
	first, err := c.Submit(ctx, []byte("frame data"), testMetadata(), "unit-42")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	second, err := c.Submit(ctx, []byte("frame data"), testMetadata(), "unit-42")
	if err != nil {
		t.Fatalf("Second Submit() failed: %v", err)
	}

	if second.Status != StatusPendingLocal {
		t.Fatalf("Expected pending-local outcome, got %s", second.Status)
	}
	if second.LocalReceiptID != first.LocalReceiptID {
		t.Error("Resubmission during outage created a second local record")
	}
}

// TestClient_RetryAfterSuccessIsIdempotent tests that a retry whose first
// attempt actually landed is reported as anchored, not rejected.
func TestClient_RetryAfterSuccessIsIdempotent(t *testing.T) {
	l := store.NewMemory()
	defer l.Close()
	fb := openTestFallback(t)
	c := New(l, fb, nil, nil)

	ctx := context.Background()
	first, err := c.Submit(ctx, []byte("frame data"), testMetadata(), "unit-42")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	retry, err := c.Submit(ctx, []byte("frame data"), testMetadata(), "unit-42")
	if err != nil {
		t.Fatalf("Retry Submit() failed: %v", err)
	}

	if retry.Status != StatusAnchored {
		t.Fatalf("Expected anchored outcome, got %s (%s)", retry.Status, retry.Reason)
	}
	if !retry.Idempotent {
		t.Error("Retry not marked idempotent")
	}
	if retry.Receipt.Position != first.Receipt.Position || retry.Receipt.SubmissionID != first.Receipt.SubmissionID {
		t.Error("Retry receipt does not match the original registration")
	}
}

// TestClient_SameRegistrantResubmitAcrossRestart tests that a resubmission
// from a fresh client (no in-memory attempt record) by the same registrant
// is treated as an idempotent retry.
func TestClient_SameRegistrantResubmitAcrossRestart(t *testing.T) {
	l := store.NewMemory()
	defer l.Close()

	ctx := context.Background()
	first := New(l, openTestFallback(t), nil, nil)
	if _, err := first.Submit(ctx, []byte("frame data"), testMetadata(), "unit-42"); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	// Fresh client, fresh fallback store: simulates a process restart.
	restarted := New(l, openTestFallback(t), nil, nil)
	outcome, err := restarted.Submit(ctx, []byte("frame data"), testMetadata(), "unit-42")
	if err != nil {
		t.Fatalf("Submit() after restart failed: %v", err)
	}

	if outcome.Status != StatusAnchored || !outcome.Idempotent {
		t.Errorf("Expected idempotent anchored outcome, got %s (idempotent=%v)",
			outcome.Status, outcome.Idempotent)
	}
}

// TestClient_CollisionRejected tests that a duplicate from a different
// registrant is surfaced as a collision, never silently absorbed.
func TestClient_CollisionRejected(t *testing.T) {
	l := store.NewMemory()
	defer l.Close()

	ctx := context.Background()
	owner := New(l, openTestFallback(t), nil, nil)
	if _, err := owner.Submit(ctx, []byte("frame data"), testMetadata(), "unit-42"); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	intruder := New(l, openTestFallback(t), nil, nil)
	outcome, err := intruder.Submit(ctx, []byte("frame data"), testMetadata(), "unit-99")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	if outcome.Status != StatusRejected {
		t.Fatalf("Expected rejected outcome, got %s", outcome.Status)
	}
	if !outcome.Collision {
		t.Error("Collision not flagged")
	}

	// The original record must be untouched.
	rec, err := l.Verify(ctx, outcome.Fingerprint)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if rec.Registrant != "unit-42" {
		t.Errorf("Collision modified the stored record: %s", rec.Registrant)
	}
}

// TestClient_ResubmitAfterCollisionRejectedAgain tests that a collision stays
// a collision: resubmitting the same foreign-owned evidence must not be
// mistaken for an idempotent retry of our own registration.
func TestClient_ResubmitAfterCollisionRejectedAgain(t *testing.T) {
	l := store.NewMemory()
	defer l.Close()

	ctx := context.Background()
	owner := New(l, openTestFallback(t), nil, nil)
	if _, err := owner.Submit(ctx, []byte("frame data"), testMetadata(), "unit-42"); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	intruder := New(l, openTestFallback(t), nil, nil)
	first, err := intruder.Submit(ctx, []byte("frame data"), testMetadata(), "unit-99")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if first.Status != StatusRejected || !first.Collision {
		t.Fatalf("Expected collision rejection, got %s (collision=%v)", first.Status, first.Collision)
	}

	second, err := intruder.Submit(ctx, []byte("frame data"), testMetadata(), "unit-99")
	if err != nil {
		t.Fatalf("Second Submit() failed: %v", err)
	}
	if second.Status != StatusRejected || !second.Collision {
		t.Fatalf("Resubmission laundered the collision: got %s (collision=%v, idempotent=%v)",
			second.Status, second.Collision, second.Idempotent)
	}
	if second.Idempotent {
		t.Error("Collision resubmission marked idempotent")
	}

	rec, err := l.Verify(ctx, second.Fingerprint)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if rec.Registrant != "unit-42" {
		t.Errorf("Collision modified the stored record: %s", rec.Registrant)
	}
}

// duplicateOnlyLedger answers every register with AlreadyRegistered but
// cannot serve verification reads, simulating a partial outage right after
// a duplicate response.
type duplicateOnlyLedger struct{}

func (d *duplicateOnlyLedger) Register(ctx context.Context, fp ledger.Fingerprint, metadata, registrant string) (*ledger.Receipt, error) {
	return nil, &ledger.AlreadyRegisteredError{Fingerprint: fp}
}

func (d *duplicateOnlyLedger) Verify(ctx context.Context, fp ledger.Fingerprint) (*ledger.Record, error) {
	return nil, ledger.NewUnavailableError("verify", errors.New("connection refused"))
}

func (d *duplicateOnlyLedger) Close() error { return nil }

// TestClient_DuplicateWithVerifyOutageQueuesLocally tests that a duplicate
// response whose confirmation read fails leaves a real queued record for the
// reconciler, not a dangling pending outcome.
func TestClient_DuplicateWithVerifyOutageQueuesLocally(t *testing.T) {
	fb := openTestFallback(t)
	c := New(&duplicateOnlyLedger{}, fb, nil, nil)

	outcome, err := c.Submit(context.Background(), []byte("frame data"), testMetadata(), "unit-42")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	if outcome.Status != StatusPendingLocal {
		t.Fatalf("Expected pending-local outcome, got %s (%s)", outcome.Status, outcome.Reason)
	}
	if outcome.LocalReceiptID == "" {
		t.Fatal("PendingLocal outcome missing local receipt ID")
	}

	pending, err := fb.Get(context.Background(), outcome.Fingerprint)
	if err != nil {
		t.Fatalf("Fallback record missing: %v", err)
	}
	if pending.State != fallback.StatePending || pending.Metadata == "" {
		t.Errorf("Queued record not reconcilable: %+v", pending)
	}
}
