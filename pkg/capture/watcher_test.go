package capture

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"sentra-hq/anchor/pkg/ledger"
	"sentra-hq/anchor/pkg/ledger/client"
	"sentra-hq/anchor/pkg/ledger/fallback"
	"sentra-hq/anchor/pkg/ledger/fingerprint"
	"sentra-hq/anchor/pkg/ledger/store"
)

func newTestClient(t *testing.T) (*client.Client, *store.Memory) {
	t.Helper()

	l := store.NewMemory()
	t.Cleanup(func() { l.Close() })

	fb, err := fallback.Open(filepath.Join(t.TempDir(), "fallback.db"))
	if err != nil {
		t.Fatalf("Failed to open fallback store: %v", err)
	}
	t.Cleanup(func() { fb.Close() })

	return client.New(l, fb, nil, nil), l
}

func writeCapture(t *testing.T, dir, name string, evidence []byte, meta sidecar) string {
	t.Helper()

	sidecarData, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("Failed to marshal sidecar: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path+".json", sidecarData, 0o644); err != nil {
		t.Fatalf("Failed to write sidecar: %v", err)
	}
	if err := os.WriteFile(path, evidence, 0o644); err != nil {
		t.Fatalf("Failed to write evidence file: %v", err)
	}
	return path
}

// TestWatcher_SubmitsNewCapture tests the full path from a file landing in
// the watched directory to a record in the ledger.
func TestWatcher_SubmitsNewCapture(t *testing.T) {
	c, l := newTestClient(t)
	dir := t.TempDir()

	w, err := NewWatcher(c, &WatcherConfig{
		Dir:         dir,
		Registrant:  "unit-42",
		SettleDelay: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Watch(ctx)
	}()
	defer func() {
		w.Stop()
		<-done
	}()

	evidence := []byte("frame-payload")
	meta := sidecar{
		CameraID:   12,
		IncidentID: 7,
		CapturedAt: time.Now().UTC(),
	}
	writeCapture(t, dir, "frame-0001.jpg", evidence, meta)

	fp, err := fingerprint.Compute(evidence, fingerprint.Metadata{
		CameraID:   meta.CameraID,
		IncidentID: meta.IncidentID,
		CapturedAt: meta.CapturedAt,
	})
	if err != nil {
		t.Fatalf("Compute() failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		record, err := l.Verify(context.Background(), fp)
		if err == nil {
			if record.Registrant != "unit-42" {
				t.Errorf("Unexpected registrant: %q", record.Registrant)
			}
			return
		}
		if !ledger.IsNotFound(err) {
			t.Fatalf("Verify() failed: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("Capture was never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestWatcher_IgnoresNonEvidenceFiles tests extension and dotfile filtering.
func TestWatcher_IgnoresNonEvidenceFiles(t *testing.T) {
	c, _ := newTestClient(t)
	w, err := NewWatcher(c, &WatcherConfig{Dir: t.TempDir(), Registrant: "unit-42"})
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.watcher.Close()

	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want bool
	}{
		{"jpg create", "/captures/frame.jpg", fsnotify.Create, true},
		{"mp4 write", "/captures/clip.MP4", fsnotify.Write, true},
		{"sidecar json", "/captures/frame.jpg.json", fsnotify.Create, false},
		{"dotfile", "/captures/.frame.jpg", fsnotify.Create, false},
		{"temp file", "/captures/frame.tmp", fsnotify.Create, false},
		{"remove event", "/captures/frame.jpg", fsnotify.Remove, false},
		{"chmod event", "/captures/frame.jpg", fsnotify.Chmod, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := w.shouldProcess(fsnotify.Event{Name: tt.path, Op: tt.op})
			if got != tt.want {
				t.Errorf("shouldProcess(%q, %v) = %v, want %v", tt.path, tt.op, got, tt.want)
			}
		})
	}
}

// TestWatcher_SkipsCaptureWithoutSidecar tests that an evidence file with no
// metadata sidecar is left alone.
func TestWatcher_SkipsCaptureWithoutSidecar(t *testing.T) {
	c, l := newTestClient(t)
	dir := t.TempDir()

	w, err := NewWatcher(c, &WatcherConfig{
		Dir:         dir,
		Registrant:  "unit-42",
		SettleDelay: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Watch(ctx)
	}()
	defer func() {
		w.Stop()
		<-done
	}()

	if err := os.WriteFile(filepath.Join(dir, "orphan.jpg"), []byte("payload"), 0o644); err != nil {
		t.Fatalf("Failed to write evidence file: %v", err)
	}

	// Give the settle timer time to fire and the submission path to run.
	time.Sleep(200 * time.Millisecond)

	if n := l.Size(); n != 0 {
		t.Errorf("Expected no registrations, ledger has %d", n)
	}
}

// TestNewWatcher_Validation tests constructor input checking.
func TestNewWatcher_Validation(t *testing.T) {
	c, _ := newTestClient(t)

	if _, err := NewWatcher(c, &WatcherConfig{Registrant: "unit-42"}); err == nil {
		t.Error("Expected an error for empty dir")
	}
	if _, err := NewWatcher(c, &WatcherConfig{Dir: t.TempDir()}); err == nil {
		t.Error("Expected an error for empty registrant")
	}
}

// TestWatcher_NoSubmissionAfterStop tests that Stop is a barrier: once it
// returns, no submission from a still-settling capture can land.
func TestWatcher_NoSubmissionAfterStop(t *testing.T) {
	c, l := newTestClient(t)
	dir := t.TempDir()

	w, err := NewWatcher(c, &WatcherConfig{
		Dir:         dir,
		Registrant:  "unit-42",
		SettleDelay: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Watch(ctx)
	}()

	writeCapture(t, dir, "frame-0001.jpg", []byte("frame-payload"), sidecar{
		CameraID:   12,
		IncidentID: 7,
		CapturedAt: time.Now().UTC(),
	})

	// Stop while the settle timer is still pending.
	time.Sleep(10 * time.Millisecond)
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	<-done

	sizeAtStop := l.Size()
	time.Sleep(200 * time.Millisecond)
	if got := l.Size(); got != sizeAtStop {
		t.Errorf("Submission landed after Stop returned: %d -> %d", sizeAtStop, got)
	}
}

// TestWatcher_StopIsIdempotent tests that Stop can be called on a watcher
// that never ran.
func TestWatcher_StopIsIdempotent(t *testing.T) {
	c, _ := newTestClient(t)
	w, err := NewWatcher(c, &WatcherConfig{Dir: t.TempDir(), Registrant: "unit-42"})
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() on an idle watcher failed: %v", err)
	}
}
