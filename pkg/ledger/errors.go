package ledger

import (
	"errors"
	"fmt"
)

// InvalidInputError indicates malformed evidence or metadata. It is returned
// synchronously, before any ledger interaction; the caller must fix the input
// and resubmit.
type InvalidInputError struct {
	Field   string // Input field that failed validation
	Message string // Human-readable description
}

// Error implements the error interface.
func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input [field=%s]: %s", e.Field, e.Message)
}

// NewInvalidInputError creates a new InvalidInputError.
func NewInvalidInputError(field, message string) *InvalidInputError {
	return &InvalidInputError{Field: field, Message: message}
}

// AlreadyRegisteredError indicates the fingerprint is already present in the
// ledger. For a legitimate retry this is a success signal, not a failure.
type AlreadyRegisteredError struct {
	Fingerprint Fingerprint
}

// Error implements the error interface.
func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("fingerprint %s already registered", e.Fingerprint.Hex())
}

// NotFoundError indicates a verification miss. This is the normal, expected
// outcome for fingerprints that were never registered.
type NotFoundError struct {
	Fingerprint Fingerprint
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("fingerprint %s not found", e.Fingerprint.Hex())
}

// UnavailableError indicates a transient failure reaching the ledger
// (timeout, connection refused). It triggers the local fallback path and is
// never surfaced as a hard failure to the capture pipeline.
type UnavailableError struct {
	Operation string // Operation that failed ("register", "verify")
	Cause     error  // Underlying transport error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("ledger unavailable [operation=%s]: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// NewUnavailableError creates a new UnavailableError.
func NewUnavailableError(operation string, cause error) *UnavailableError {
	return &UnavailableError{Operation: operation, Cause: cause}
}

// CorruptReceiptError indicates that reconciliation found a mismatch between
// a locally stored record and what the remote ledger reports for the same
// fingerprint. It is fatal for the affected record: it must be escalated for
// operator review and never silently discarded or retried.
type CorruptReceiptError struct {
	Fingerprint    Fingerprint
	LocalMetadata  string
	RemoteMetadata string
}

// Error implements the error interface.
func (e *CorruptReceiptError) Error() string {
	return fmt.Sprintf("corrupt receipt for fingerprint %s: local metadata does not match ledger",
		e.Fingerprint.Hex())
}

// StoreError represents a failure in a ledger storage backend.
type StoreError struct {
	Backend   string // Backend type ("sqlite", "memory", "remote")
	Operation string // Operation that failed ("register", "verify", "open")
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("ledger store error [backend=%s, operation=%s]: %v",
		e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new StoreError.
func NewStoreError(backend, operation string, cause error) *StoreError {
	return &StoreError{Backend: backend, Operation: operation, Cause: cause}
}

// IsAlreadyRegistered reports whether err is an AlreadyRegisteredError.
func IsAlreadyRegistered(err error) bool {
	var target *AlreadyRegisteredError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsUnavailable reports whether err is an UnavailableError.
func IsUnavailable(err error) bool {
	var target *UnavailableError
	return errors.As(err, &target)
}

// IsInvalidInput reports whether err is an InvalidInputError.
func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}
