package reconcile

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sentra-hq/anchor/pkg/ledger"
	"sentra-hq/anchor/pkg/ledger/fallback"
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

func fastConfig() *Config {
	return &Config{
		BatchSize:      50,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		MaxCycles:      10,
	}
}

// downLedger always reports unavailability.
type downLedger struct{}

func (d *downLedger) Register(ctx context.Context, fp ledger.Fingerprint, metadata, registrant string) (*ledger.Receipt, error) {
	return nil, ledger.NewUnavailableError("register", errors.New("connection refused"))
}

func (d *downLedger) Verify(ctx context.Context, fp ledger.Fingerprint) (*ledger.Record, error) {
	return nil, ledger.NewUnavailableError("verify", errors.New("connection refused"))
}

func (d *downLedger) Close() error { return nil }

// flakyLedger fails a fixed number of register calls before recovering.
type flakyLedger struct {
	mu       sync.Mutex
	failures int
	inner    ledger.Ledger
}

func (f *flakyLedger) Register(ctx context.Context, fp ledger.Fingerprint, metadata, registrant string) (*ledger.Receipt, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, ledger.NewUnavailableError("register", errors.New("temporary outage"))
	}
	f.mu.Unlock()
	return f.inner.Register(ctx, fp, metadata, registrant)
}

func (f *flakyLedger) Verify(ctx context.Context, fp ledger.Fingerprint) (*ledger.Record, error) {
	return f.inner.Verify(ctx, fp)
}

func (f *flakyLedger) Close() error { return f.inner.Close() }

// TestReconciler_AnchorsPendingRecords tests the basic replay cycle.
func TestReconciler_AnchorsPendingRecords(t *testing.T) {
	l := store.NewMemory()
	defer l.Close()
	fb := openTestFallback(t)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		fp := testFingerprint(fmt.Sprintf("capture-%d", i))
		if _, err := fb.Enqueue(ctx, fp, fmt.Sprintf(`{"camera_id":%d}`, i+1), "unit-42"); err != nil {
			t.Fatalf("Enqueue() failed: %v", err)
		}
	}

	r := New(l, fb, fastConfig(), nil)
	anchored, unresolved, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}
	if anchored != 3 || unresolved != 0 {
		t.Fatalf("Expected 3 anchored / 0 unresolved, got %d / %d", anchored, unresolved)
	}

	// Every record must now be in the ledger and marked anchored locally.
	for i := 0; i < 3; i++ {
		fp := testFingerprint(fmt.Sprintf("capture-%d", i))
		if _, err := l.Verify(ctx, fp); err != nil {
			t.Errorf("Record %d not in ledger: %v", i, err)
		}
		rec, err := fb.Get(ctx, fp)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if rec.State != fallback.StateAnchored {
			t.Errorf("Record %d state %s, want anchored", i, rec.State)
		}
		if rec.AnchoredPosition == 0 || rec.SubmissionID == "" {
			t.Errorf("Record %d missing anchored receipt fields", i)
		}
	}
}

// TestReconciler_RetriesWithinCycle tests that transient failures inside a
// cycle are retried under backoff before giving up.
func TestReconciler_RetriesWithinCycle(t *testing.T) {
	inner := store.NewMemory()
	defer inner.Close()
	l := &flakyLedger{failures: 2, inner: inner}
	fb := openTestFallback(t)

	ctx := context.Background()
	fp := testFingerprint("capture-1")
	if _, err := fb.Enqueue(ctx, fp, "meta", "unit-42"); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	r := New(l, fb, fastConfig(), nil)
	anchored, unresolved, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}
	if anchored != 1 || unresolved != 0 {
		t.Errorf("Expected recovery within cycle, got %d anchored / %d unresolved", anchored, unresolved)
	}
}

// TestReconciler_DefersOnSustainedOutage tests that a record survives a
// fully failed cycle and returns to the pending pool.
func TestReconciler_DefersOnSustainedOutage(t *testing.T) {
	fb := openTestFallback(t)

	ctx := context.Background()
	fp := testFingerprint("capture-1")
	if _, err := fb.Enqueue(ctx, fp, "meta", "unit-42"); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	r := New(&downLedger{}, fb, fastConfig(), nil)
	anchored, unresolved, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}
	if anchored != 0 || unresolved != 1 {
		t.Fatalf("Expected 0 anchored / 1 unresolved, got %d / %d", anchored, unresolved)
	}

	rec, err := fb.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if rec.State != fallback.StatePending {
		t.Errorf("Record state %s, want pending", rec.State)
	}
	if rec.Attempts != 1 {
		t.Errorf("Expected 1 recorded cycle, got %d", rec.Attempts)
	}
}

// TestReconciler_FlagsForReviewAfterBudget tests escalation once the cycle
// budget is exhausted. The record is flagged, never dropped.
func TestReconciler_FlagsForReviewAfterBudget(t *testing.T) {
	fb := openTestFallback(t)

	ctx := context.Background()
	fp := testFingerprint("capture-1")
	if _, err := fb.Enqueue(ctx, fp, "meta", "unit-42"); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	cfg := fastConfig()
	cfg.MaxCycles = 2
	r := New(&downLedger{}, fb, cfg, nil)

	// Cycle 1: deferred. Cycle 2: budget exhausted, flagged.
	for i := 0; i < 2; i++ {
		if _, _, err := r.Reconcile(ctx); err != nil {
			t.Fatalf("Reconcile() cycle %d failed: %v", i+1, err)
		}
	}

	rec, err := fb.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if rec.State != fallback.StateReview {
		t.Errorf("Record state %s, want review", rec.State)
	}
	if rec.LastError == "" {
		t.Error("Review record missing escalation reason")
	}
}

// TestReconciler_ConfirmsExistingRecord tests the already-registered path:
// a record whose original registration actually landed is confirmed, not
// flagged.
func TestReconciler_ConfirmsExistingRecord(t *testing.T) {
	l := store.NewMemory()
	defer l.Close()
	fb := openTestFallback(t)

	ctx := context.Background()
	fp := testFingerprint("capture-1")

	// The original register call landed remotely before the outage cut the
	// response.
	receipt, err := l.Register(ctx, fp, "meta", "unit-42")
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if _, err := fb.Enqueue(ctx, fp, "meta", "unit-42"); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	r := New(l, fb, fastConfig(), nil)
	anchored, unresolved, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}
	if anchored != 1 || unresolved != 0 {
		t.Fatalf("Expected confirmation, got %d anchored / %d unresolved", anchored, unresolved)
	}

	rec, err := fb.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if rec.State != fallback.StateAnchored {
		t.Errorf("Record state %s, want anchored", rec.State)
	}
	if rec.AnchoredPosition != receipt.Position || rec.SubmissionID != receipt.SubmissionID {
		t.Error("Confirmed record does not carry the original receipt")
	}
}

// TestReconciler_CorruptReceiptFlagged tests that a metadata mismatch under
// our fingerprint is escalated for review, never retried or discarded.
func TestReconciler_CorruptReceiptFlagged(t *testing.T) {
	l := store.NewMemory()
	defer l.Close()
	fb := openTestFallback(t)

	ctx := context.Background()
	fp := testFingerprint("capture-1")

	if _, err := l.Register(ctx, fp, "remote-metadata", "unit-42"); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if _, err := fb.Enqueue(ctx, fp, "local-metadata", "unit-42"); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	r := New(l, fb, fastConfig(), nil)
	anchored, unresolved, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}
	if anchored != 0 || unresolved != 1 {
		t.Fatalf("Expected 0 anchored / 1 unresolved, got %d / %d", anchored, unresolved)
	}

	rec, err := fb.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if rec.State != fallback.StateReview {
		t.Errorf("Record state %s, want review", rec.State)
	}
}

// TestReconciler_EmptyCycle tests a cycle with nothing to do.
func TestReconciler_EmptyCycle(t *testing.T) {
	l := store.NewMemory()
	defer l.Close()
	fb := openTestFallback(t)

	r := New(l, fb, fastConfig(), nil)
	anchored, unresolved, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}
	if anchored != 0 || unresolved != 0 {
		t.Errorf("Expected empty cycle, got %d / %d", anchored, unresolved)
	}
}
