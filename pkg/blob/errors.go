package blob

import "errors"

// ============================================================================
// Standard Blob Store Errors
// ============================================================================

// Implementations wrap these sentinels with additional context:
//
//	if !exists {
//	    return fmt.Errorf("blob %s: %w", digest, blob.ErrBlobNotFound)
//	}
//
// Callers check with errors.Is.

var (
	// ErrBlobNotFound indicates no blob exists under the requested digest.
	//
	// When the digest came from a metadata record this is a broken content
	// reference (backend-level data loss or corruption) and must be surfaced,
	// never silently defaulted.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrReadOnly indicates the blob store rejects writes.
	ErrReadOnly = errors.New("blob store is read-only")
)
