package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"sentra-hq/anchor/pkg/ledger/client"
	"sentra-hq/anchor/pkg/ledger/fingerprint"
)

// WatcherConfig contains configuration for the capture directory watcher.
type WatcherConfig struct {
	// Dir is the captures directory to watch for new evidence files.
	Dir string

	// Registrant is the identity used for registrations submitted by the
	// watcher (e.g. "worker-7").
	Registrant string

	// Extensions is the list of evidence file extensions to process.
	// Default: .jpg, .jpeg, .png, .mp4
	Extensions []string

	// SettleDelay is how long a file must be quiet after its last write
	// before it is submitted, so partially written captures are not
	// fingerprinted mid-write.
	// Default: 500ms
	SettleDelay time.Duration
}

// DefaultWatcherConfig returns the default watcher configuration.
func DefaultWatcherConfig() *WatcherConfig {
	return &WatcherConfig{
		Extensions:  []string{".jpg", ".jpeg", ".png", ".mp4"},
		SettleDelay: 500 * time.Millisecond,
	}
}

// Watcher watches a captures directory and submits every new evidence file
// for registration. Capture metadata comes from a JSON sidecar next to the
// evidence file ("frame.jpg" → "frame.jpg.json"); files without a sidecar
// are skipped with a warning so the capture pipeline can backfill.
type Watcher struct {
	client  *client.Client
	config  *WatcherConfig
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer // path → settle timer
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// sidecar is the JSON metadata file written next to each capture.
type sidecar struct {
	CameraID   int64             `json:"camera_id"`
	IncidentID int64             `json:"incident_id"`
	CapturedAt time.Time         `json:"captured_at"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// NewWatcher creates a new capture watcher.
func NewWatcher(c *client.Client, config *WatcherConfig) (*Watcher, error) {
	if config == nil {
		config = DefaultWatcherConfig()
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("capture watcher: dir cannot be empty")
	}
	if config.Registrant == "" {
		return nil, fmt.Errorf("capture watcher: registrant cannot be empty")
	}
	if len(config.Extensions) == 0 {
		config.Extensions = DefaultWatcherConfig().Extensions
	}
	if config.SettleDelay <= 0 {
		config.SettleDelay = 500 * time.Millisecond
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("capture watcher: %w", err)
	}

	return &Watcher{
		client:  c,
		config:  config,
		watcher: fsw,
		logger:  slog.Default().With("component", "capture.watcher"),
		pending: make(map[string]*time.Timer),
		stopCh:  make(chan struct{}),
	}, nil
}

// Watch processes filesystem events until the context is cancelled or Stop
// is called. Blocking.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("capture watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.config.Dir); err != nil {
		return fmt.Errorf("capture watcher: failed to watch %s: %w", w.config.Dir, err)
	}

	w.logger.Info("capture watcher started",
		"dir", w.config.Dir,
		"registrant", w.config.Registrant,
		"settle_delay", w.config.SettleDelay,
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("capture watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("capture watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("capture watcher: events channel closed")
			}
			if !w.shouldProcess(event) {
				continue
			}
			w.scheduleSubmit(ctx, event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("capture watcher: errors channel closed")
			}
			w.logger.Error("capture watcher error", "error", err)
		}
	}
}

// Stop stops the watcher and waits for in-flight submissions.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	return w.watcher.Close()
}

// shouldProcess filters events down to writes of evidence files.
func (w *Watcher) shouldProcess(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return false
	}

	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}

	ext := strings.ToLower(filepath.Ext(event.Name))
	for _, want := range w.config.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// scheduleSubmit (re)arms the settle timer for a path. Every write resets
// the timer, so the file is only submitted once it has been quiet for the
// settle delay.
func (w *Watcher) scheduleSubmit(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.config.SettleDelay)
		return
	}

	w.pending[path] = time.AfterFunc(w.config.SettleDelay, func() {
		// The wg.Add must happen under the same lock Stop uses to flip
		// running, so Stop's Wait cannot slip in between the timer firing
		// and the submission being accounted for.
		w.mu.Lock()
		delete(w.pending, path)
		if !w.running {
			w.mu.Unlock()
			return
		}
		w.wg.Add(1)
		w.mu.Unlock()

		defer w.wg.Done()
		w.submitFile(ctx, path)
	})
}

// submitFile reads an evidence file and its sidecar and submits them for
// registration.
func (w *Watcher) submitFile(ctx context.Context, path string) {
	evidence, err := os.ReadFile(path)
	if err != nil {
		w.logger.Error("failed to read evidence file", "path", path, "error", err)
		return
	}

	meta, err := w.loadSidecar(path)
	if err != nil {
		w.logger.Warn("skipping capture without usable sidecar", "path", path, "error", err)
		return
	}

	outcome, err := w.client.Submit(ctx, evidence, meta, w.config.Registrant)
	if err != nil {
		w.logger.Error("capture submission failed", "path", path, "error", err)
		return
	}

	switch outcome.Status {
	case client.StatusAnchored:
		w.logger.Info("capture anchored",
			"path", path,
			"fingerprint", outcome.Fingerprint.Hex(),
			"position", outcome.Receipt.Position,
		)
	case client.StatusPendingLocal:
		w.logger.Info("capture pending local reconciliation",
			"path", path,
			"fingerprint", outcome.Fingerprint.Hex(),
			"local_receipt_id", outcome.LocalReceiptID,
		)
	case client.StatusRejected:
		w.logger.Error("capture rejected",
			"path", path,
			"reason", outcome.Reason,
			"collision", outcome.Collision,
		)
	}
}

// loadSidecar reads capture metadata from the JSON sidecar next to an
// evidence file.
func (w *Watcher) loadSidecar(path string) (fingerprint.Metadata, error) {
	data, err := os.ReadFile(path + ".json")
	if err != nil {
		return fingerprint.Metadata{}, err
	}

	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return fingerprint.Metadata{}, fmt.Errorf("malformed sidecar: %w", err)
	}

	return fingerprint.Metadata{
		CameraID:   sc.CameraID,
		IncidentID: sc.IncidentID,
		CapturedAt: sc.CapturedAt,
		Extra:      sc.Extra,
	}, nil
}
