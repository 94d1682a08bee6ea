package reconcile

import (
	"context"
	"testing"
	"time"

	"sentra-hq/anchor/pkg/ledger/fallback"
	"sentra-hq/anchor/pkg/ledger/store"
)

// TestScheduler_KickTriggersCycle tests that a kick runs a cycle without
// waiting for the cron schedule.
func TestScheduler_KickTriggersCycle(t *testing.T) {
	l := store.NewMemory()
	defer l.Close()
	fb := openTestFallback(t)

	ctx := context.Background()
	fp := testFingerprint("capture-1")
	if _, err := fb.Enqueue(ctx, fp, "meta", "unit-42"); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	cfg := fastConfig()
	cfg.Schedule = "" // kicks only
	s := NewScheduler(New(l, fb, cfg, nil))

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer s.Stop()

	if !s.IsRunning() {
		t.Fatal("Scheduler not running after Start()")
	}

	s.Kick()

	// Wait for the kicked cycle to anchor the record.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := fb.Get(ctx, fp)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if rec.State == fallback.StateAnchored {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Kicked cycle did not anchor the pending record")
}

// TestScheduler_RejectsInvalidSchedule tests schedule validation at start.
func TestScheduler_RejectsInvalidSchedule(t *testing.T) {
	l := store.NewMemory()
	defer l.Close()
	fb := openTestFallback(t)

	cfg := fastConfig()
	cfg.Schedule = "not a cron expression"
	s := NewScheduler(New(l, fb, cfg, nil))

	if err := s.Start(context.Background()); err == nil {
		s.Stop()
		t.Fatal("Start() accepted an invalid schedule")
	}
}

// TestScheduler_StartStop tests lifecycle management.
func TestScheduler_StartStop(t *testing.T) {
	l := store.NewMemory()
	defer l.Close()
	fb := openTestFallback(t)

	cfg := fastConfig()
	cfg.Schedule = "@every 1h"
	s := NewScheduler(New(l, fb, cfg, nil))

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("Second Start() succeeded, want error")
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("Scheduler still running after Stop()")
	}

	// Stop must be idempotent.
	s.Stop()
}
