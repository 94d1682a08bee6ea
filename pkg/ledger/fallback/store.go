package fallback

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"sentra-hq/anchor/pkg/ledger"
)

// State is the lifecycle state of a pending record in the fallback store.
type State string

const (
	// StatePending means the record has not yet been anchored in the
	// remote ledger and is awaiting reconciliation.
	StatePending State = "pending"

	// StateAnchored means reconciliation confirmed the record in the
	// remote ledger. The row is kept for audit.
	StateAnchored State = "anchored"

	// StateReview means reconciliation failed permanently (attempt budget
	// exhausted or metadata mismatch) and an operator must intervene.
	StateReview State = "review"
)

// PendingRecord is an evidence registration held locally while the remote
// ledger is unreachable or reconciliation is in progress.
type PendingRecord struct {
	// LocalReceiptID is the locally issued receipt identifier returned to
	// the capture pipeline with a PendingLocal outcome.
	LocalReceiptID string

	Fingerprint ledger.Fingerprint
	Metadata    string
	Registrant  string
	EnqueuedAt  time.Time

	// Attempts counts completed reconciliation cycles for this record.
	Attempts  int
	State     State
	LastError string

	// Remote receipt fields, populated once the record is anchored.
	AnchoredPosition uint64
	AnchoredAt       time.Time
	SubmissionID     string
}

// Store is the durable local fallback store for registrations that could not
// reach the remote ledger. It is the only resource shared mutably by the
// registration client and the background reconciler; the in_flight claim
// column serializes access per fingerprint so a record is never reconciled
// twice concurrently.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS pending_records (
    local_receipt_id TEXT PRIMARY KEY,
    fingerprint TEXT NOT NULL UNIQUE,
    metadata TEXT NOT NULL,
    registrant TEXT NOT NULL,
    enqueued_at TIMESTAMP NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    state TEXT NOT NULL DEFAULT 'pending',
    in_flight INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    anchored_position INTEGER,
    anchored_at TIMESTAMP,
    submission_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_pending_records_state ON pending_records(state);
`

// Open opens (or creates) the fallback store at the given path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, ledger.NewStoreError("fallback", "open", fmt.Errorf("path cannot be empty"))
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ledger.NewStoreError("fallback", "open", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ledger.NewStoreError("fallback", "open", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, ledger.NewStoreError("fallback", "create_schema", err)
	}

	// Clear stale claims from a previous run that died mid-reconciliation.
	if _, err := db.Exec(`UPDATE pending_records SET in_flight = 0 WHERE in_flight = 1`); err != nil {
		db.Close()
		return nil, ledger.NewStoreError("fallback", "reset_claims", err)
	}

	s := &Store{
		db:     db,
		logger: slog.Default().With("component", "ledger.fallback"),
	}

	s.logger.Info("fallback store opened", "path", path)
	return s, nil
}

// Enqueue stores a registration locally and returns its pending record.
// Enqueueing the same fingerprint twice is idempotent: the existing record
// is returned unchanged.
func (s *Store) Enqueue(ctx context.Context, fp ledger.Fingerprint, metadata, registrant string) (*PendingRecord, error) {
	rec := &PendingRecord{
		LocalReceiptID: uuid.New().String(),
		Fingerprint:    fp,
		Metadata:       metadata,
		Registrant:     registrant,
		EnqueuedAt:     time.Now().UTC(),
		State:          StatePending,
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_records (local_receipt_id, fingerprint, metadata, registrant, enqueued_at, state)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO NOTHING`,
		rec.LocalReceiptID, fp.Hex(), metadata, registrant,
		rec.EnqueuedAt.Format(time.RFC3339Nano), string(StatePending),
	)
	if err != nil {
		return nil, ledger.NewStoreError("fallback", "enqueue", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, ledger.NewStoreError("fallback", "enqueue", err)
	}
	if inserted == 0 {
		// Fingerprint already queued; hand back the existing record.
		return s.Get(ctx, fp)
	}

	s.logger.Info("registration queued locally",
		"fingerprint", fp.Hex(),
		"local_receipt_id", rec.LocalReceiptID,
		"registrant", registrant,
	)

	return rec, nil
}

// Get returns the pending record for a fingerprint, or a NotFoundError.
func (s *Store) Get(ctx context.Context, fp ledger.Fingerprint) (*PendingRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT local_receipt_id, metadata, registrant, enqueued_at, attempts, state, last_error,
		        anchored_position, anchored_at, submission_id
		 FROM pending_records WHERE fingerprint = ?`,
		fp.Hex(),
	)
	return s.scanRecord(row, fp)
}

// Claim atomically marks up to limit pending records as in flight and
// returns them. Claimed records are invisible to subsequent Claim calls
// until released or resolved, which serializes reconciliation per
// fingerprint.
func (s *Store) Claim(ctx context.Context, limit int) ([]*PendingRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, ledger.NewStoreError("fallback", "claim", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT fingerprint, local_receipt_id, metadata, registrant, enqueued_at, attempts, last_error
		 FROM pending_records
		 WHERE state = ? AND in_flight = 0
		 ORDER BY enqueued_at ASC
		 LIMIT ?`,
		string(StatePending), limit,
	)
	if err != nil {
		return nil, ledger.NewStoreError("fallback", "claim", err)
	}

	var records []*PendingRecord
	for rows.Next() {
		var (
			fpHex      string
			rec        PendingRecord
			enqueuedAt string
		)
		if err := rows.Scan(&fpHex, &rec.LocalReceiptID, &rec.Metadata, &rec.Registrant,
			&enqueuedAt, &rec.Attempts, &rec.LastError); err != nil {
			rows.Close()
			return nil, ledger.NewStoreError("fallback", "claim", err)
		}
		fp, err := ledger.ParseFingerprint(fpHex)
		if err != nil {
			rows.Close()
			return nil, ledger.NewStoreError("fallback", "claim", err)
		}
		rec.Fingerprint = fp
		rec.State = StatePending
		if ts, err := time.Parse(time.RFC3339Nano, enqueuedAt); err == nil {
			rec.EnqueuedAt = ts
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.NewStoreError("fallback", "claim", err)
	}
	rows.Close()

	for _, rec := range records {
		if _, err := tx.ExecContext(ctx,
			`UPDATE pending_records SET in_flight = 1 WHERE fingerprint = ?`,
			rec.Fingerprint.Hex(),
		); err != nil {
			return nil, ledger.NewStoreError("fallback", "claim", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, ledger.NewStoreError("fallback", "claim", err)
	}

	return records, nil
}

// Release returns a claimed record to the pending pool after a transient
// failure, recording the attempt and its error.
func (s *Store) Release(ctx context.Context, fp ledger.Fingerprint, lastError string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_records
		 SET in_flight = 0, attempts = attempts + 1, last_error = ?
		 WHERE fingerprint = ?`,
		lastError, fp.Hex(),
	)
	if err != nil {
		return ledger.NewStoreError("fallback", "release", err)
	}
	return nil
}

// MarkAnchored records a successful reconciliation: the remote receipt is
// stored and the record leaves the pending pool.
func (s *Store) MarkAnchored(ctx context.Context, fp ledger.Fingerprint, receipt *ledger.Receipt) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_records
		 SET state = ?, in_flight = 0, attempts = attempts + 1, last_error = '',
		     anchored_position = ?, anchored_at = ?, submission_id = ?
		 WHERE fingerprint = ?`,
		string(StateAnchored), receipt.Position,
		receipt.RegisteredAt.Format(time.RFC3339Nano), receipt.SubmissionID,
		fp.Hex(),
	)
	if err != nil {
		return ledger.NewStoreError("fallback", "mark_anchored", err)
	}

	s.logger.Info("pending record anchored",
		"fingerprint", fp.Hex(),
		"position", receipt.Position,
		"submission_id", receipt.SubmissionID,
	)
	return nil
}

// MarkReview flags a record for manual operator review. Review records are
// never retried automatically and never dropped.
func (s *Store) MarkReview(ctx context.Context, fp ledger.Fingerprint, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_records
		 SET state = ?, in_flight = 0, last_error = ?
		 WHERE fingerprint = ?`,
		string(StateReview), reason, fp.Hex(),
	)
	if err != nil {
		return ledger.NewStoreError("fallback", "mark_review", err)
	}

	s.logger.Error("pending record flagged for review",
		"fingerprint", fp.Hex(),
		"reason", reason,
	)
	return nil
}

// List returns all records in the given state, oldest first.
func (s *Store) List(ctx context.Context, state State) ([]*PendingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, local_receipt_id, metadata, registrant, enqueued_at, attempts, state, last_error,
		        anchored_position, anchored_at, submission_id
		 FROM pending_records WHERE state = ? ORDER BY enqueued_at ASC`,
		string(state),
	)
	if err != nil {
		return nil, ledger.NewStoreError("fallback", "list", err)
	}
	defer rows.Close()

	var records []*PendingRecord
	for rows.Next() {
		var (
			fpHex      string
			rec        PendingRecord
			enqueuedAt string
			stateStr   string
			position   sql.NullInt64
			anchoredAt sql.NullString
			subID      sql.NullString
		)
		if err := rows.Scan(&fpHex, &rec.LocalReceiptID, &rec.Metadata, &rec.Registrant,
			&enqueuedAt, &rec.Attempts, &stateStr, &rec.LastError,
			&position, &anchoredAt, &subID); err != nil {
			return nil, ledger.NewStoreError("fallback", "list", err)
		}
		fp, err := ledger.ParseFingerprint(fpHex)
		if err != nil {
			return nil, ledger.NewStoreError("fallback", "list", err)
		}
		rec.Fingerprint = fp
		rec.State = State(stateStr)
		if ts, err := time.Parse(time.RFC3339Nano, enqueuedAt); err == nil {
			rec.EnqueuedAt = ts
		}
		fillReceiptFields(&rec, position, anchoredAt, subID)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.NewStoreError("fallback", "list", err)
	}

	return records, nil
}

// CountByState returns the number of records per state, for metrics and the
// operator CLI.
func (s *Store) CountByState(ctx context.Context) (map[State]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM pending_records GROUP BY state`)
	if err != nil {
		return nil, ledger.NewStoreError("fallback", "count", err)
	}
	defer rows.Close()

	counts := map[State]int64{
		StatePending:  0,
		StateAnchored: 0,
		StateReview:   0,
	}
	for rows.Next() {
		var (
			state string
			count int64
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, ledger.NewStoreError("fallback", "count", err)
		}
		counts[State(state)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.NewStoreError("fallback", "count", err)
	}

	return counts, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return ledger.NewStoreError("fallback", "close", err)
	}
	return nil
}

// scanRecord scans a single pending record row.
func (s *Store) scanRecord(row *sql.Row, fp ledger.Fingerprint) (*PendingRecord, error) {
	var (
		rec        PendingRecord
		enqueuedAt string
		stateStr   string
		position   sql.NullInt64
		anchoredAt sql.NullString
		subID      sql.NullString
	)

	err := row.Scan(&rec.LocalReceiptID, &rec.Metadata, &rec.Registrant,
		&enqueuedAt, &rec.Attempts, &stateStr, &rec.LastError,
		&position, &anchoredAt, &subID)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Fingerprint: fp}
	}
	if err != nil {
		return nil, ledger.NewStoreError("fallback", "get", err)
	}

	rec.Fingerprint = fp
	rec.State = State(stateStr)
	if ts, err := time.Parse(time.RFC3339Nano, enqueuedAt); err == nil {
		rec.EnqueuedAt = ts
	}
	fillReceiptFields(&rec, position, anchoredAt, subID)

	return &rec, nil
}

// fillReceiptFields copies the nullable remote receipt columns into the record.
func fillReceiptFields(rec *PendingRecord, position sql.NullInt64, anchoredAt, subID sql.NullString) {
	if position.Valid {
		rec.AnchoredPosition = uint64(position.Int64)
	}
	if anchoredAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, anchoredAt.String); err == nil {
			rec.AnchoredAt = ts
		}
	}
	if subID.Valid {
		rec.SubmissionID = subID.String
	}
}
