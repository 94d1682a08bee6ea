package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"sentra-hq/anchor/pkg/ledger"
	"sentra-hq/anchor/pkg/ledger/fallback"
	"sentra-hq/anchor/pkg/telemetry/metrics"
)

// Config contains configuration for the reconciler.
type Config struct {
	// Schedule is the cron expression for periodic reconciliation cycles
	// (e.g. "@every 1m", "*/5 * * * *"). Empty disables scheduling; cycles
	// then run only on explicit kicks.
	Schedule string

	// BatchSize is the maximum number of pending records claimed per cycle.
	// Default: 50
	BatchSize int

	// MaxAttempts is the number of register tries per record within one
	// cycle, under exponential backoff.
	// Default: 3
	MaxAttempts int

	// InitialBackoff is the first retry delay within a cycle.
	// Default: 1 second
	InitialBackoff time.Duration

	// MaxBackoff caps the retry delay within a cycle.
	// Default: 30 seconds
	MaxBackoff time.Duration

	// MaxCycles is the number of failed cycles a record may accumulate
	// before it is flagged for manual operator review instead of being
	// retried further. Flagged records are never dropped.
	// Default: 10
	MaxCycles int
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() *Config {
	return &Config{
		Schedule:       "@every 1m",
		BatchSize:      50,
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		MaxCycles:      10,
	}
}

// applyDefaults fills zero fields with defaults.
func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.MaxCycles <= 0 {
		c.MaxCycles = 10
	}
}

// Reconciler replays records from the local fallback store against the
// remote ledger until they are anchored or flagged for review.
type Reconciler struct {
	ledger  ledger.Ledger
	store   *fallback.Store
	config  *Config
	metrics *metrics.LedgerMetrics
	logger  *slog.Logger
}

// New creates a new reconciler. The metrics handle may be nil.
func New(l ledger.Ledger, store *fallback.Store, config *Config, m *metrics.LedgerMetrics) *Reconciler {
	if config == nil {
		config = DefaultConfig()
	}
	config.applyDefaults()

	return &Reconciler{
		ledger:  l,
		store:   store,
		config:  config,
		metrics: m,
		logger:  slog.Default().With("component", "ledger.reconcile"),
	}
}

// Reconcile runs a single reconciliation cycle: it claims a batch of pending
// records and replays each against the ledger. It returns the number of
// records anchored and the number still unresolved.
func (r *Reconciler) Reconcile(ctx context.Context) (anchored, unresolved int, err error) {
	records, err := r.store.Claim(ctx, r.config.BatchSize)
	if err != nil {
		r.metrics.RecordReconcileCycle("failed")
		return 0, 0, err
	}

	if len(records) == 0 {
		r.metrics.RecordReconcileCycle("clean")
		r.updateGauges(ctx)
		return 0, 0, nil
	}

	r.logger.Info("reconciliation cycle started", "claimed", len(records))

	for _, rec := range records {
		if ctx.Err() != nil {
			// Shutdown mid-cycle: release unprocessed claims.
			if releaseErr := r.store.Release(ctx, rec.Fingerprint, "cycle interrupted"); releaseErr != nil {
				r.logger.Error("failed to release claim on shutdown",
					"fingerprint", rec.Fingerprint.Hex(),
					"error", releaseErr,
				)
			}
			unresolved++
			continue
		}

		if r.reconcileRecord(ctx, rec) {
			anchored++
		} else {
			unresolved++
		}
	}

	switch {
	case unresolved == 0:
		r.metrics.RecordReconcileCycle("clean")
	case anchored > 0:
		r.metrics.RecordReconcileCycle("partial")
	default:
		r.metrics.RecordReconcileCycle("failed")
	}

	r.updateGauges(ctx)

	r.logger.Info("reconciliation cycle finished",
		"anchored", anchored,
		"unresolved", unresolved,
	)

	return anchored, unresolved, nil
}

// reconcileRecord replays one pending record. Returns true when the record
// ended the cycle anchored.
func (r *Reconciler) reconcileRecord(ctx context.Context, rec *fallback.PendingRecord) bool {
	register := func() (*ledger.Receipt, error) {
		receipt, err := r.ledger.Register(ctx, rec.Fingerprint, rec.Metadata, rec.Registrant)
		if err != nil {
			if ledger.IsUnavailable(err) {
				return nil, err // retryable within this cycle
			}
			return nil, backoff.Permanent(err)
		}
		return receipt, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.config.InitialBackoff
	expo.MaxInterval = r.config.MaxBackoff

	receipt, err := backoff.Retry(ctx, register,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(r.config.MaxAttempts)),
	)

	switch {
	case err == nil:
		return r.markAnchored(ctx, rec, receipt)

	case ledger.IsAlreadyRegistered(err):
		return r.confirmExisting(ctx, rec)

	case ledger.IsInvalidInput(err):
		// The record can never succeed as stored; an operator must look.
		r.flagForReview(ctx, rec, fmt.Sprintf("ledger rejected record: %v", err))
		return false

	default:
		// Transient failure survived the backoff budget.
		return r.handleTransientFailure(ctx, rec, err)
	}
}

// confirmExisting handles a record the ledger already knows: either our own
// earlier registration finally landing, or a corrupt receipt.
func (r *Reconciler) confirmExisting(ctx context.Context, rec *fallback.PendingRecord) bool {
	remote, err := r.ledger.Verify(ctx, rec.Fingerprint)
	if err != nil {
		return r.handleTransientFailure(ctx, rec,
			fmt.Errorf("could not confirm existing record: %w", err))
	}

	if remote.Metadata != rec.Metadata {
		// The ledger holds different metadata under our fingerprint.
		// Fatal for this record: escalate, never retry, never discard.
		r.metrics.RecordAnomaly("corrupt_receipt")
		corrupt := &ledger.CorruptReceiptError{
			Fingerprint:    rec.Fingerprint,
			LocalMetadata:  rec.Metadata,
			RemoteMetadata: remote.Metadata,
		}
		r.logger.Error("corrupt receipt detected during reconciliation",
			"fingerprint", rec.Fingerprint.Hex(),
			"local_registrant", rec.Registrant,
			"ledger_registrant", remote.Registrant,
		)
		r.flagForReview(ctx, rec, corrupt.Error())
		return false
	}

	// Idempotent confirmation: the ledger record matches what we hold.
	return r.markAnchoredRecord(ctx, rec, remote)
}

// handleTransientFailure releases the record for the next cycle, or flags it
// for review once the cycle budget is exhausted.
func (r *Reconciler) handleTransientFailure(ctx context.Context, rec *fallback.PendingRecord, cause error) bool {
	// Attempts counts completed cycles; this failing cycle is one more.
	if rec.Attempts+1 >= r.config.MaxCycles {
		r.flagForReview(ctx, rec, fmt.Sprintf(
			"retry budget exhausted after %d cycles: %v", rec.Attempts+1, cause))
		return false
	}

	if err := r.store.Release(ctx, rec.Fingerprint, cause.Error()); err != nil {
		r.logger.Error("failed to release pending record",
			"fingerprint", rec.Fingerprint.Hex(),
			"error", err,
		)
	}

	r.logger.Warn("pending record deferred to next cycle",
		"fingerprint", rec.Fingerprint.Hex(),
		"cycles", rec.Attempts+1,
		"max_cycles", r.config.MaxCycles,
		"cause", cause,
	)
	return false
}

// markAnchored stores a fresh receipt for a replayed record.
func (r *Reconciler) markAnchored(ctx context.Context, rec *fallback.PendingRecord, receipt *ledger.Receipt) bool {
	if err := r.store.MarkAnchored(ctx, rec.Fingerprint, receipt); err != nil {
		r.logger.Error("failed to mark record anchored",
			"fingerprint", rec.Fingerprint.Hex(),
			"error", err,
		)
		return false
	}
	return true
}

// markAnchoredRecord stores the receipt of an already-registered record.
func (r *Reconciler) markAnchoredRecord(ctx context.Context, rec *fallback.PendingRecord, remote *ledger.Record) bool {
	return r.markAnchored(ctx, rec, ledger.ReceiptFromRecord(remote))
}

// flagForReview marks a record for manual operator intervention.
func (r *Reconciler) flagForReview(ctx context.Context, rec *fallback.PendingRecord, reason string) {
	if err := r.store.MarkReview(ctx, rec.Fingerprint, reason); err != nil {
		r.logger.Error("failed to flag record for review",
			"fingerprint", rec.Fingerprint.Hex(),
			"error", err,
		)
	}
}

// updateGauges refreshes the pending-record gauges from the fallback store.
func (r *Reconciler) updateGauges(ctx context.Context) {
	counts, err := r.store.CountByState(ctx)
	if err != nil {
		r.logger.Warn("failed to count fallback records", "error", err)
		return
	}
	for state, count := range counts {
		r.metrics.SetPendingRecords(string(state), float64(count))
	}
}
