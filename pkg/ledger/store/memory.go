package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentra-hq/anchor/pkg/ledger"
)

// Memory implements the Ledger interface with an in-memory map. It is used
// in tests and for single-process embedded deployments where durability is
// handled elsewhere.
type Memory struct {
	mu           sync.RWMutex
	records      map[ledger.Fingerprint]*ledger.Record
	nextPosition uint64
	now          func() time.Time
}

// NewMemory creates a new in-memory ledger backend.
func NewMemory() *Memory {
	return &Memory{
		records:      make(map[ledger.Fingerprint]*ledger.Record),
		nextPosition: 1,
		now:          time.Now,
	}
}

// Register atomically records a fingerprint. The presence check and insert
// happen under a single lock acquisition, so under concurrent calls with the
// same fingerprint exactly one succeeds.
func (m *Memory) Register(ctx context.Context, fp ledger.Fingerprint, metadata, registrant string) (*ledger.Receipt, error) {
	if fp.IsZero() {
		return nil, ledger.NewInvalidInputError("fingerprint", "must not be zero")
	}
	if err := ledger.ValidateRegistrant(registrant); err != nil {
		return nil, err
	}
	if metadata == "" {
		return nil, ledger.NewInvalidInputError("metadata", "must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[fp]; exists {
		return nil, &ledger.AlreadyRegisteredError{Fingerprint: fp}
	}

	rec := &ledger.Record{
		Fingerprint:  fp,
		Metadata:     metadata,
		Registrant:   registrant,
		RegisteredAt: m.now().UTC(),
		Position:     m.nextPosition,
		SubmissionID: uuid.New().String(),
	}
	m.nextPosition++
	m.records[fp] = rec

	return ledger.ReceiptFromRecord(rec), nil
}

// Verify returns the record for a fingerprint without taking the write lock.
func (m *Memory) Verify(ctx context.Context, fp ledger.Fingerprint) (*ledger.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[fp]
	if !ok {
		return nil, &ledger.NotFoundError{Fingerprint: fp}
	}

	// Copy so callers cannot mutate the stored record.
	recCopy := *rec
	return &recCopy, nil
}

// Close releases the backend's resources.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = make(map[ledger.Fingerprint]*ledger.Record)
	return nil
}

// Ping always succeeds; the in-memory backend has no external storage.
func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

// Size returns the number of registered records (for tests).
func (m *Memory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.records)
}

// HighestPosition returns the highest assigned position, or zero when the
// ledger is empty (for tests and audit).
func (m *Memory) HighestPosition() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.nextPosition - 1
}
