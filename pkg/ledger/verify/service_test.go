package verify

import (
	"context"
	"crypto/sha256"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"sentra-hq/anchor/pkg/ledger"
	"sentra-hq/anchor/pkg/ledger/fallback"
	"sentra-hq/anchor/pkg/ledger/reconcile"
	"sentra-hq/anchor/pkg/ledger/store"
)

func testFingerprint(seed string) ledger.Fingerprint {
	return ledger.Fingerprint(sha256.Sum256([]byte(seed)))
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

// downLedger simulates an unreachable ledger service.
type downLedger struct{}

func (d *downLedger) Register(ctx context.Context, fp ledger.Fingerprint, metadata, registrant string) (*ledger.Receipt, error) {
	return nil, ledger.NewUnavailableError("register", errors.New("connection refused"))
}

func (d *downLedger) Verify(ctx context.Context, fp ledger.Fingerprint) (*ledger.Record, error) {
	return nil, ledger.NewUnavailableError("verify", errors.New("connection refused"))
}

func (d *downLedger) Close() error { return nil }

// TestService_AnchoredRecord tests a lookup answered by the ledger.
func TestService_AnchoredRecord(t *testing.T) {
	l := store.NewMemory()
	defer l.Close()

	ctx := context.Background()
	fp := testFingerprint("capture-1")
	receipt, err := l.Register(ctx, fp, "meta", "unit-42")
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	s := New(l, openTestFallback(t))
	result, err := s.Lookup(ctx, fp)
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}

	if result.Provisional {
		t.Error("Ledger-backed record reported provisional")
	}
	if result.Record.Position != receipt.Position {
		t.Errorf("Wrong position: %d, want %d", result.Record.Position, receipt.Position)
	}
	if result.LocalState != "" {
		t.Errorf("Anchored result carries local state %q", result.LocalState)
	}
}

// TestService_UnknownFingerprint tests the not-found path.
func TestService_UnknownFingerprint(t *testing.T) {
	l := store.NewMemory()
	defer l.Close()

	s := New(l, openTestFallback(t))
	_, err := s.Lookup(context.Background(), testFingerprint("never registered"))
	if !ledger.IsNotFound(err) {
		t.Errorf("Expected NotFoundError, got %T: %v", err, err)
	}
}

// TestService_PendingRecordIsProvisional tests that a record queued locally
// during an outage is verifiable, flagged as locally asserted.
func TestService_PendingRecordIsProvisional(t *testing.T) {
	fb := openTestFallback(t)

	ctx := context.Background()
	fp := testFingerprint("capture-1")
	pending, err := fb.Enqueue(ctx, fp, "meta", "unit-42")
	if err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	s := New(&downLedger{}, fb)
	result, err := s.Lookup(ctx, fp)
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}

	if !result.Provisional {
		t.Fatal("Locally queued record not reported provisional")
	}
	if result.LocalState != string(fallback.StatePending) {
		t.Errorf("Wrong local state: %s", result.LocalState)
	}
	if result.Record.Position != 0 || result.Record.SubmissionID != "" {
		t.Error("Provisional result carries ledger-assigned fields")
	}
	if !result.Record.RegisteredAt.Equal(pending.EnqueuedAt) {
		t.Error("Provisional result does not carry the local enqueue time")
	}
}

// TestService_ProvisionalBecomesAnchored tests the full transition: pending
// and provisional during the outage, anchored and authoritative after
// reconciliation.
func TestService_ProvisionalBecomesAnchored(t *testing.T) {
	l := store.NewMemory()
	defer l.Close()
	fb := openTestFallback(t)

	ctx := context.Background()
	fp := testFingerprint("capture-1")
	if _, err := fb.Enqueue(ctx, fp, "meta", "unit-42"); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	s := New(l, fb)

	// Before reconciliation the ledger misses; only the local record answers.
	before, err := s.Lookup(ctx, fp)
	if err != nil {
		t.Fatalf("Lookup() before reconciliation failed: %v", err)
	}
	if !before.Provisional {
		t.Fatal("Expected provisional result before reconciliation")
	}

	r := reconcile.New(l, fb, &reconcile.Config{
		BatchSize: 10, MaxAttempts: 2,
		InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond,
		MaxCycles: 5,
	}, nil)
	if _, _, err := r.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}

	after, err := s.Lookup(ctx, fp)
	if err != nil {
		t.Fatalf("Lookup() after reconciliation failed: %v", err)
	}
	if after.Provisional {
		t.Error("Record still provisional after reconciliation")
	}
	if after.Record.Position == 0 || after.Record.SubmissionID == "" {
		t.Error("Anchored result missing ledger-assigned fields")
	}
}

// TestService_ReviewRecordIsProvisional tests that escalated records remain
// verifiable with their review state exposed.
func TestService_ReviewRecordIsProvisional(t *testing.T) {
	fb := openTestFallback(t)

	ctx := context.Background()
	fp := testFingerprint("capture-1")
	if _, err := fb.Enqueue(ctx, fp, "meta", "unit-42"); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	if err := fb.MarkReview(ctx, fp, "metadata mismatch"); err != nil {
		t.Fatalf("MarkReview() failed: %v", err)
	}

	s := New(&downLedger{}, fb)
	result, err := s.Lookup(ctx, fp)
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if !result.Provisional || result.LocalState != string(fallback.StateReview) {
		t.Errorf("Expected provisional review result, got provisional=%v state=%s",
			result.Provisional, result.LocalState)
	}
}

// TestService_AnchoredLocallyDuringOutage tests that a reconciled record is
// served with its stored remote receipt even while the ledger is down.
func TestService_AnchoredLocallyDuringOutage(t *testing.T) {
	fb := openTestFallback(t)

	ctx := context.Background()
	fp := testFingerprint("capture-1")
	if _, err := fb.Enqueue(ctx, fp, "meta", "unit-42"); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	receipt := &ledger.Receipt{
		Fingerprint:  fp,
		Position:     42,
		RegisteredAt: time.Now().UTC().Truncate(time.Millisecond),
		SubmissionID: "sub-1",
	}
	if err := fb.MarkAnchored(ctx, fp, receipt); err != nil {
		t.Fatalf("MarkAnchored() failed: %v", err)
	}

	s := New(&downLedger{}, fb)
	result, err := s.Lookup(ctx, fp)
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if result.Provisional {
		t.Error("Locally confirmed record reported provisional")
	}
	if result.Record.Position != 42 || result.Record.SubmissionID != "sub-1" {
		t.Error("Result does not carry the stored remote receipt")
	}
}
