// Package blob defines the content-addressed blob store boundary.
//
// File content is stored as immutable blobs keyed by the SHA-1 digest of the
// content bytes. Storing the same bytes twice yields the same digest and must
// not create a second physical copy (deduplication). Blobs are never modified
// once stored; metadata records reference them by digest.
package blob

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
)

// DigestSize is the length in bytes of a content digest (SHA-1).
const DigestSize = sha1.Size

// Digest is the fixed-length cryptographic hash identifying a content blob.
//
// A digest is a pure function of the content bytes: two blobs with identical
// content have identical digests. Digests are rendered as lowercase
// hexadecimal for display and for storage keys that need a string form.
type Digest [DigestSize]byte

// DigestOf computes the digest of the given content bytes.
func DigestOf(data []byte) Digest {
	return sha1.Sum(data)
}

// Hex returns the lowercase hexadecimal rendering of the digest.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String implements fmt.Stringer.
func (d Digest) String() string {
	return d.Hex()
}

// ParseDigest parses a lowercase hexadecimal digest string.
//
// Returns an error if the string is not exactly DigestSize*2 hex characters.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if len(raw) != DigestSize {
		return d, fmt.Errorf("invalid digest %q: expected %d bytes, got %d", s, DigestSize, len(raw))
	}
	copy(d[:], raw)
	return d, nil
}

// Store provides content-addressed blob storage.
//
// The store owns the physical bytes; callers hold only digests. Content is
// immutable once stored under a digest, and the store is expected to perform
// its own integrity verification.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// Put stores the given content bytes and returns their digest.
	//
	// Put is idempotent: storing identical bytes twice returns the same
	// digest and must not create a second physical copy.
	//
	// Returns:
	//   - Digest: The content digest (computed from the bytes, never stored state)
	//   - error: Write errors from the backend, or context cancellation
	Put(ctx context.Context, data []byte) (Digest, error)

	// Open returns a reader over the blob with the given digest.
	//
	// The caller must close the returned reader.
	//
	// Returns:
	//   - io.ReadCloser: Reader over the blob bytes
	//   - error: ErrBlobNotFound if no blob exists under the digest, or
	//     read errors from the backend, or context cancellation
	Open(ctx context.Context, digest Digest) (io.ReadCloser, error)

	// Stat returns the size in bytes of the blob with the given digest.
	//
	// Returns:
	//   - int64: Blob size in bytes
	//   - error: ErrBlobNotFound if no blob exists under the digest
	Stat(ctx context.Context, digest Digest) (int64, error)

	// List returns the digests of all blobs currently stored.
	//
	// Used by garbage collection to find orphaned blobs. The result is a
	// snapshot and may be stale by the time it is consumed.
	List(ctx context.Context) ([]Digest, error)

	// Delete removes the blob with the given digest.
	//
	// Deleting a missing blob is not an error. Only garbage collection
	// should call this; regular callers never delete content because other
	// metadata records may reference the same digest.
	Delete(ctx context.Context, digest Digest) error
}
