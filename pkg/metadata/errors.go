package metadata

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ============================================================================
// Error Taxonomy
// ============================================================================

// Four failure classes cover every metadata operation:
//
//   - Stale Version: a conditional update/remove matched no record for the
//     expected (id, version) pair. Reported as *StaleVersionError, never
//     retried automatically.
//   - Storage Failure: the backing store reported a read/write error.
//     Reported as *StorageError wrapping the underlying cause.
//   - Not Found: the requested record does not exist. A normal outcome for
//     lookups, reported as ErrNotFound.
//   - Invalid Argument: the caller passed an impossible request (e.g. Length
//     without Digest). Reported as ErrInvalidArgument.
//
// Callers distinguish them with errors.Is / errors.As.

var (
	// ErrNotFound indicates the requested record or child does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidArgument indicates the request violates a record invariant,
	// such as setting Length without Digest.
	ErrInvalidArgument = errors.New("invalid argument")
)

// StaleVersionError reports that a conditional update or remove found no
// record matching the expected (id, version) pair: the file was concurrently
// modified, deleted, or the caller's handle is stale.
//
// The caller decides how to resolve the conflict, typically by re-fetching
// the record and reapplying the change, or by surfacing the conflict. The
// store never retries.
type StaleVersionError struct {
	// ID is the record the mutation targeted.
	ID uuid.UUID

	// Name is the record's name as known to the caller, for diagnostics.
	// May be empty when the caller held only an id.
	Name string

	// ExpectedVersion is the version the mutation was conditioned on.
	ExpectedVersion uint64
}

// Error implements the error interface.
func (e *StaleVersionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("version %d is no longer the current version for file %s (%s)",
			e.ExpectedVersion, e.ID, e.Name)
	}
	return fmt.Sprintf("version %d is no longer the current version for file %s",
		e.ExpectedVersion, e.ID)
}

// IsStaleVersion reports whether err is (or wraps) a StaleVersionError.
func IsStaleVersion(err error) bool {
	var stale *StaleVersionError
	return errors.As(err, &stale)
}

// StorageError reports a hard failure of the backing metadata store.
//
// It wraps the underlying cause so callers can still inspect it, while
// keeping the failure class recognizable with errors.As.
type StorageError struct {
	// Op is the store operation that failed ("get", "create", "update", ...).
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("metadata store %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Err
}
