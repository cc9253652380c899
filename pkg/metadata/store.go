package metadata

import (
	"context"

	"github.com/google/uuid"

	"github.com/lakshmanb4u/v7files/pkg/blob"
)

// ============================================================================
// Store Interface
// ============================================================================

// Store persists versioned file metadata records.
//
// The store is the only collaborator the version gate and the tree navigator
// talk to. It supports fetch-by-id, fetch-children-by-parent-id, conditional
// update/remove keyed by the compound (id, version) pair, and atomic
// create-with-initial-version.
//
// Concurrency Model:
// The store takes no locks on behalf of callers. Conditional update and
// remove are the compare-and-swap unit: for a single record id, writes are
// totally ordered by version, at most one writer wins each version
// transition, and losers receive *StaleVersionError rather than silently
// overwriting. There is no ordering guarantee across record ids and no
// cross-record transactions.
//
// Error Discipline:
//   - Lookups return ErrNotFound for missing records (a normal outcome)
//   - Conditional mutations return *StaleVersionError on version mismatch
//   - Backend failures are wrapped in *StorageError
//   - All operations respect context cancellation
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// Get fetches the current record with the given id.
	//
	// Returns:
	//   - *Record: A private copy the caller may inspect freely
	//   - error: ErrNotFound if no record exists, *StorageError on backend
	//     failure, or context cancellation
	Get(ctx context.Context, id uuid.UUID) (*Record, error)

	// Children returns all records whose ParentID equals parentID.
	//
	// The order is unspecified unless the backend imposes one. An empty
	// result is not an error.
	Children(ctx context.Context, parentID uuid.UUID) ([]*Record, error)

	// Child returns the child of parentID with exactly the given name.
	//
	// When multiple children share a name the first match in store order is
	// returned; callers must not rely on which one that is, and should
	// prevent same-name siblings if uniqueness matters to them.
	//
	// Returns:
	//   - *Record: The matching child
	//   - error: ErrNotFound if no child has that name
	Child(ctx context.Context, parentID uuid.UUID, name string) (*Record, error)

	// Roots returns all records without a parent.
	//
	// Root records are entry points into the tree; gateways and tools use
	// this to find or re-find their root after a restart.
	Roots(ctx context.Context) ([]*Record, error)

	// Create atomically persists a new record.
	//
	// The store assigns a fresh globally unique ID, sets Version to
	// InitialVersion and stamps CreatedAt/UpdatedAt, all atomically with
	// the write. Fields the caller set on rec (ParentID, Name, ContentType,
	// Digest, Length, ACL) are persisted as given.
	//
	// Returns:
	//   - *Record: The completed record as stored
	//   - error: ErrInvalidArgument if Length and Digest presence disagree,
	//     *StorageError on backend failure
	Create(ctx context.Context, rec *Record) (*Record, error)

	// ConditionalUpdate applies change to the record with the given id,
	// conditioned on expectedVersion being its current version.
	//
	// On success the stored version advances by exactly one and the updated
	// record is returned. If no record matches the (id, expectedVersion)
	// pair (because the record was concurrently modified or deleted), a
	// *StaleVersionError is returned and nothing is mutated. The store
	// never retries; conflict resolution belongs to the caller.
	ConditionalUpdate(ctx context.Context, id uuid.UUID, expectedVersion uint64, change Change) (*Record, error)

	// ConditionalRemove deletes the record with the given id, conditioned on
	// expectedVersion being its current version.
	//
	// Same matching discipline and failure taxonomy as ConditionalUpdate.
	// The associated content blob is not touched; orphaned blobs are the
	// garbage collector's concern.
	ConditionalRemove(ctx context.Context, id uuid.UUID, expectedVersion uint64) error

	// AllDigests returns the digests referenced by any record.
	//
	// Used by garbage collection to identify content still in use. The
	// result is a deduplicated snapshot and may be stale by the time it is
	// consumed.
	AllDigests(ctx context.Context) ([]blob.Digest, error)

	// Healthcheck verifies the store can serve requests.
	Healthcheck(ctx context.Context) error

	// Close releases backend resources. The store must not be used after.
	Close() error
}

// ValidateRecord checks the Length-iff-Digest invariant on a record about to
// be created.
func ValidateRecord(rec *Record) error {
	if (rec.Digest == nil) != (rec.Length == nil) {
		return ErrInvalidArgument
	}
	return nil
}

// ValidateChange checks the Length-iff-Digest invariant on a change.
func ValidateChange(change Change) error {
	if (change.Digest == nil) != (change.Length == nil) {
		return ErrInvalidArgument
	}
	return nil
}
