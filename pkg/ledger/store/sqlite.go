package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"sentra-hq/anchor/pkg/ledger"
)

// SQLiteConfig contains configuration for the SQLite ledger backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for concurrent reads during writes.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/ledger.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLite implements the Ledger interface backed by a SQLite database.
//
// The write path is serialized by SQLite's single-writer model; reads run in
// parallel with writes under WAL mode. Registration is a single INSERT whose
// unique fingerprint constraint provides the atomic check-and-insert.
type SQLite struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLite creates a new SQLite ledger backend and initializes the schema.
func NewSQLite(config *SQLiteConfig) (*SQLite, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "ledger.store.sqlite")

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ledger.NewStoreError("sqlite", "open", err)
		}
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, ledger.NewStoreError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLite{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite ledger initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// initialize sets up the database schema and pragmas.
func (s *SQLite) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return ledger.NewStoreError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return ledger.NewStoreError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return ledger.NewStoreError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return ledger.NewStoreError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return ledger.NewStoreError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return ledger.NewStoreError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Register atomically records a fingerprint. The unique constraint on the
// fingerprint column turns a duplicate insert into a constraint violation,
// so exactly one of any set of concurrent same-fingerprint calls succeeds
// and the rest observe AlreadyRegisteredError — never a torn record.
func (s *SQLite) Register(ctx context.Context, fp ledger.Fingerprint, metadata, registrant string) (*ledger.Receipt, error) {
	if fp.IsZero() {
		return nil, ledger.NewInvalidInputError("fingerprint", "must not be zero")
	}
	if err := ledger.ValidateRegistrant(registrant); err != nil {
		return nil, err
	}
	if metadata == "" {
		return nil, ledger.NewInvalidInputError("metadata", "must not be empty")
	}

	registeredAt := time.Now().UTC()
	submissionID := uuid.New().String()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO evidence_records (fingerprint, metadata, registrant, registered_at, submission_id)
		 VALUES (?, ?, ?, ?, ?)`,
		fp.Hex(), metadata, registrant, registeredAt.Format(time.RFC3339Nano), submissionID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &ledger.AlreadyRegisteredError{Fingerprint: fp}
		}
		return nil, ledger.NewStoreError("sqlite", "register", err)
	}

	position, err := res.LastInsertId()
	if err != nil {
		return nil, ledger.NewStoreError("sqlite", "register", err)
	}

	s.logger.Debug("fingerprint registered",
		"fingerprint", fp.Hex(),
		"position", position,
		"registrant", registrant,
	)

	return &ledger.Receipt{
		Fingerprint:  fp,
		Position:     uint64(position),
		RegisteredAt: registeredAt,
		SubmissionID: submissionID,
	}, nil
}

// Verify returns the record for a fingerprint. Pure read; never mutates state.
func (s *SQLite) Verify(ctx context.Context, fp ledger.Fingerprint) (*ledger.Record, error) {
	var (
		metadata     string
		registrant   string
		registeredAt string
		position     int64
		submissionID string
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT metadata, registrant, registered_at, position, submission_id
		 FROM evidence_records WHERE fingerprint = ?`,
		fp.Hex(),
	).Scan(&metadata, &registrant, &registeredAt, &position, &submissionID)

	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Fingerprint: fp}
	}
	if err != nil {
		return nil, ledger.NewStoreError("sqlite", "verify", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, registeredAt)
	if err != nil {
		return nil, ledger.NewStoreError("sqlite", "verify",
			fmt.Errorf("malformed registered_at %q: %w", registeredAt, err))
	}

	return &ledger.Record{
		Fingerprint:  fp,
		Metadata:     metadata,
		Registrant:   registrant,
		RegisteredAt: ts,
		Position:     uint64(position),
		SubmissionID: submissionID,
	}, nil
}

// Count returns the total number of registered records.
func (s *SQLite) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evidence_records`).Scan(&count)
	if err != nil {
		return 0, ledger.NewStoreError("sqlite", "count", err)
	}
	return count, nil
}

// HighestPosition returns the highest assigned position, or zero when the
// ledger is empty.
func (s *SQLite) HighestPosition(ctx context.Context) (uint64, error) {
	var position sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(position) FROM evidence_records`).Scan(&position)
	if err != nil {
		return 0, ledger.NewStoreError("sqlite", "highest_position", err)
	}
	if !position.Valid {
		return 0, nil
	}
	return uint64(position.Int64), nil
}

// Ping reports whether the backing database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return ledger.NewStoreError("sqlite", "ping", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return ledger.NewStoreError("sqlite", "close", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint
// violation (duplicate fingerprint).
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
