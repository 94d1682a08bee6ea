package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentra-hq/anchor/pkg/ledger"
	"sentra-hq/anchor/pkg/ledger/fallback"
	"sentra-hq/anchor/pkg/ledger/fingerprint"
	"sentra-hq/anchor/pkg/telemetry/metrics"
)

// Config contains configuration for the registration client.
type Config struct {
	// RegisterTimeout bounds each ledger register call. When exceeded, the
	// record takes the local fallback path instead of blocking the capture
	// pipeline.
	// Default: 3 seconds
	RegisterTimeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		RegisterTimeout: 3 * time.Second,
	}
}

// Client orchestrates fingerprinting and registration against the ledger.
// It never blocks or fails the originating capture pipeline: Submit either
// completes within the register timeout or falls back to a fast local write,
// leaving the remote anchoring to the background reconciler.
type Client struct {
	ledger   ledger.Ledger
	fallback *fallback.Store
	config   *Config
	metrics  *metrics.LedgerMetrics
	logger   *slog.Logger

	// attempted tracks fingerprints this client has itself submitted, by
	// request ID, so a duplicate response to a legitimate retry can be told
	// apart from a true registrant collision.
	attempted sync.Map // map[ledger.Fingerprint]string

	// kick, when set, wakes the reconciler after a fallback write.
	kickMu sync.RWMutex
	kick   func()
}

// New creates a new registration client. The metrics handle may be nil.
func New(l ledger.Ledger, fb *fallback.Store, config *Config, m *metrics.LedgerMetrics) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RegisterTimeout <= 0 {
		config.RegisterTimeout = 3 * time.Second
	}

	return &Client{
		ledger:   l,
		fallback: fb,
		config:   config,
		metrics:  m,
		logger:   slog.Default().With("component", "ledger.client"),
	}
}

// SetReconcileKick installs a callback invoked after every fallback write,
// so the reconciler can run ahead of its next scheduled cycle.
func (c *Client) SetReconcileKick(kick func()) {
	c.kickMu.Lock()
	defer c.kickMu.Unlock()
	c.kick = kick
}

// Submit fingerprints a piece of evidence and registers it with the ledger.
//
// Structural input errors return a Rejected outcome synchronously. Ledger
// unreachability is absorbed: the record is written to the fallback store
// and a PendingLocal outcome is returned. The returned error is non-nil only
// when both the ledger and the fallback store failed.
func (c *Client) Submit(ctx context.Context, evidence []byte, meta fingerprint.Metadata, registrant string) (*Outcome, error) {
	if err := ledger.ValidateRegistrant(registrant); err != nil {
		return c.reject(ledger.Fingerprint{}, err.Error()), nil
	}

	fp, err := fingerprint.Compute(evidence, meta)
	if err != nil {
		return c.reject(ledger.Fingerprint{}, err.Error()), nil
	}

	canonical, err := fingerprint.Canonicalize(meta)
	if err != nil {
		return c.reject(fp, err.Error()), nil
	}

	// Record the attempt before calling the ledger: if the call succeeds
	// remotely but the response is lost, the retry must be recognized as
	// our own.
	requestID := uuid.New().String()
	_, retried := c.attempted.LoadOrStore(fp, requestID)

	registerCtx, cancel := context.WithTimeout(ctx, c.config.RegisterTimeout)
	defer cancel()

	start := time.Now()
	receipt, err := c.ledger.Register(registerCtx, fp, canonical, registrant)
	c.metrics.ObserveRegisterDuration(time.Since(start).Seconds())

	switch {
	case err == nil:
		c.metrics.RecordRegistration("anchored")
		c.logger.Info("evidence anchored",
			"fingerprint", fp.Hex(),
			"position", receipt.Position,
			"submission_id", receipt.SubmissionID,
			"registrant", registrant,
		)
		return &Outcome{
			Status:      StatusAnchored,
			Fingerprint: fp,
			Receipt:     receipt,
		}, nil

	case ledger.IsAlreadyRegistered(err):
		return c.handleDuplicate(ctx, fp, canonical, registrant, retried)

	case ledger.IsUnavailable(err):
		return c.fallbackWrite(ctx, fp, canonical, registrant, err)

	case ledger.IsInvalidInput(err):
		c.attempted.Delete(fp)
		return c.reject(fp, err.Error()), nil

	default:
		// Backend errors that are not classified as transient still must
		// not fail the capture pipeline; treat them like unavailability.
		c.logger.Warn("ledger register failed, taking fallback path",
			"fingerprint", fp.Hex(),
			"error", err,
		)
		return c.fallbackWrite(ctx, fp, canonical, registrant, err)
	}
}

// handleDuplicate decides whether an AlreadyRegistered response is an
// idempotent retry of our own submission or a genuine collision.
func (c *Client) handleDuplicate(ctx context.Context, fp ledger.Fingerprint, canonical, registrant string, retried bool) (*Outcome, error) {
	rec, err := c.ledger.Verify(ctx, fp)
	if err != nil {
		// The register call just told us the record exists; a verify miss
		// or transport failure here is transient. Queue the record locally
		// so the reconciler confirms it against the existing registration
		// once the ledger answers again.
		c.logger.Warn("could not fetch existing record after duplicate response",
			"fingerprint", fp.Hex(),
			"error", err,
		)
		return c.fallbackWrite(ctx, fp, canonical, registrant, err)
	}

	ownRetry := retried || c.knownToFallback(ctx, fp)
	if !ownRetry && rec.Registrant == registrant {
		// Same registrant, unknown attempt: a resubmission from a prior
		// process run. Treat as our own retry.
		ownRetry = true
	}

	if ownRetry {
		c.metrics.RecordRegistration("anchored")
		c.logger.Info("duplicate registration treated as idempotent retry",
			"fingerprint", fp.Hex(),
			"position", rec.Position,
		)
		return &Outcome{
			Status:      StatusAnchored,
			Fingerprint: fp,
			Receipt:     ledger.ReceiptFromRecord(rec),
			Idempotent:  true,
		}, nil
	}

	// A different capture produced the same fingerprint: hash collision or
	// upstream logic bug. Surfaced distinctly, never swallowed. The attempt
	// marker is dropped so a resubmission is rejected again rather than
	// mistaken for an idempotent retry of our own registration.
	c.attempted.Delete(fp)
	c.metrics.RecordAnomaly("collision")
	c.metrics.RecordRegistration("rejected")
	c.logger.Error("fingerprint collision with foreign registration",
		"fingerprint", fp.Hex(),
		"our_registrant", registrant,
		"ledger_registrant", rec.Registrant,
		"ledger_position", rec.Position,
	)

	return &Outcome{
		Status:      StatusRejected,
		Fingerprint: fp,
		Reason:      "fingerprint already registered by " + rec.Registrant,
		Collision:   true,
	}, nil
}

// fallbackWrite absorbs a transient ledger failure by queueing the record
// locally and returning a PendingLocal outcome.
func (c *Client) fallbackWrite(ctx context.Context, fp ledger.Fingerprint, canonical, registrant string, cause error) (*Outcome, error) {
	pending, err := c.fallback.Enqueue(ctx, fp, canonical, registrant)
	if err != nil {
		// Both the ledger and the local store failed. This is the one
		// path that surfaces a hard error.
		return nil, err
	}

	c.metrics.RecordRegistration("pending_local")
	c.logger.Warn("ledger unreachable, registration pending locally",
		"fingerprint", fp.Hex(),
		"local_receipt_id", pending.LocalReceiptID,
		"cause", cause,
	)

	c.kickMu.RLock()
	kick := c.kick
	c.kickMu.RUnlock()
	if kick != nil {
		kick()
	}

	return &Outcome{
		Status:         StatusPendingLocal,
		Fingerprint:    fp,
		LocalReceiptID: pending.LocalReceiptID,
	}, nil
}

// knownToFallback reports whether the fallback store has a record for the
// fingerprint, meaning an earlier Submit from this deployment queued it.
func (c *Client) knownToFallback(ctx context.Context, fp ledger.Fingerprint) bool {
	if c.fallback == nil {
		return false
	}
	_, err := c.fallback.Get(ctx, fp)
	return err == nil
}

// reject builds a Rejected outcome.
func (c *Client) reject(fp ledger.Fingerprint, reason string) *Outcome {
	c.metrics.RecordRegistration("rejected")
	return &Outcome{
		Status:      StatusRejected,
		Fingerprint: fp,
		Reason:      reason,
	}
}
