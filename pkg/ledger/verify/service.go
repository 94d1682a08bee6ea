package verify

import (
	"context"
	"log/slog"
	"time"

	"sentra-hq/anchor/pkg/ledger"
	"sentra-hq/anchor/pkg/ledger/fallback"
)

// Result is the answer to a verification lookup.
type Result struct {
	// Record is the evidence record. For provisional results the
	// position and submission ID are unset and the timestamp is the local
	// enqueue time — locally asserted, not ledger-assigned.
	Record ledger.Record `json:"record"`

	// Provisional is true when the record is known only to the local
	// fallback store and has not been anchored in the remote ledger yet.
	// Audit consumers must treat provisional integrity as locally
	// asserted, not externally anchored.
	Provisional bool `json:"provisional"`

	// LocalState is the fallback store state for provisional results
	// ("pending" or "review"); empty for anchored results.
	LocalState string `json:"local_state,omitempty"`
}

// Service answers read-only verification lookups for audit and evidence
// review consumers. It consults the authoritative ledger first and falls
// back to the local pending store, so a record awaiting reconciliation is
// still verifiable.
type Service struct {
	ledger ledger.Ledger
	store  *fallback.Store
	logger *slog.Logger

	// VerifyTimeout bounds the ledger call. Default: 3 seconds.
	VerifyTimeout time.Duration
}

// New creates a new verification service. The fallback store may be nil
// when the service fronts the ledger directly (server-side verification).
func New(l ledger.Ledger, store *fallback.Store) *Service {
	return &Service{
		ledger:        l,
		store:         store,
		logger:        slog.Default().With("component", "ledger.verify"),
		VerifyTimeout: 3 * time.Second,
	}
}

// Lookup returns the record for a fingerprint, with a provisional flag
// telling the caller whether integrity has been externally anchored.
// Lookup never mutates state. Returns a NotFoundError when neither the
// ledger nor the fallback store knows the fingerprint.
func (s *Service) Lookup(ctx context.Context, fp ledger.Fingerprint) (*Result, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, s.VerifyTimeout)
	defer cancel()

	rec, err := s.ledger.Verify(verifyCtx, fp)
	if err == nil {
		return &Result{Record: *rec, Provisional: false}, nil
	}

	if !ledger.IsNotFound(err) && !ledger.IsUnavailable(err) {
		return nil, err
	}

	// Ledger miss or unreachable: a record pending reconciliation must
	// still be verifiable.
	if s.store != nil {
		if result, ok := s.lookupLocal(ctx, fp); ok {
			return result, nil
		}
	}

	// No local knowledge either; report the ledger's answer.
	return nil, err
}

// lookupLocal builds a result from the fallback store, if it knows the
// fingerprint.
func (s *Service) lookupLocal(ctx context.Context, fp ledger.Fingerprint) (*Result, bool) {
	pending, err := s.store.Get(ctx, fp)
	if err != nil {
		if !ledger.IsNotFound(err) {
			s.logger.Warn("fallback store lookup failed",
				"fingerprint", fp.Hex(),
				"error", err,
			)
		}
		return nil, false
	}

	if pending.State == fallback.StateAnchored {
		// Reconciliation already confirmed this record; serve the stored
		// remote receipt even while the ledger is unreachable.
		return &Result{
			Record: ledger.Record{
				Fingerprint:  fp,
				Metadata:     pending.Metadata,
				Registrant:   pending.Registrant,
				RegisteredAt: pending.AnchoredAt,
				Position:     pending.AnchoredPosition,
				SubmissionID: pending.SubmissionID,
			},
			Provisional: false,
		}, true
	}

	return &Result{
		Record: ledger.Record{
			Fingerprint:  fp,
			Metadata:     pending.Metadata,
			Registrant:   pending.Registrant,
			RegisteredAt: pending.EnqueuedAt,
		},
		Provisional: true,
		LocalState:  string(pending.State),
	}, true
}
