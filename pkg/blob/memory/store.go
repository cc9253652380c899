// Package memory implements an in-memory blob store.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/lakshmanb4u/v7files/pkg/blob"
)

// MemoryBlobStore implements blob.Store using an in-memory map.
//
// This implementation is designed for:
//   - Testing and development
//   - Ephemeral deployments where content need not survive restarts
//
// Deduplication is structural: the map is keyed by digest, so storing the
// same bytes twice overwrites the entry with identical data and never grows
// the map.
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Data is copied on write so
// callers cannot mutate stored content through their own buffers.
type MemoryBlobStore struct {
	// blobs stores content bytes keyed by digest
	blobs map[blob.Digest][]byte

	// mu protects concurrent access to blobs
	mu sync.RWMutex
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore(ctx context.Context) (*MemoryBlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &MemoryBlobStore{
		blobs: make(map[blob.Digest][]byte),
	}, nil
}

// Put stores the given bytes under their digest.
//
// Idempotent: if the digest is already present the stored bytes are left
// untouched.
func (s *MemoryBlobStore) Put(ctx context.Context, data []byte) (blob.Digest, error) {
	digest := blob.DigestOf(data)

	if err := ctx.Err(); err != nil {
		return digest, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blobs[digest]; !exists {
		stored := make([]byte, len(data))
		copy(stored, data)
		s.blobs[digest] = stored
	}

	return digest, nil
}

// Open returns a reader over the blob with the given digest.
func (s *MemoryBlobStore) Open(ctx context.Context, digest blob.Digest) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, exists := s.blobs[digest]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("blob %s: %w", digest, blob.ErrBlobNotFound)
	}

	// The stored slice is never mutated after insertion, so reading it
	// without a copy is safe.
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Stat returns the size of the blob with the given digest.
func (s *MemoryBlobStore) Stat(ctx context.Context, digest blob.Digest) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	data, exists := s.blobs[digest]
	s.mu.RUnlock()

	if !exists {
		return 0, fmt.Errorf("blob %s: %w", digest, blob.ErrBlobNotFound)
	}

	return int64(len(data)), nil
}

// List returns the digests of all stored blobs.
func (s *MemoryBlobStore) List(ctx context.Context) ([]blob.Digest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	digests := make([]blob.Digest, 0, len(s.blobs))
	for digest := range s.blobs {
		digests = append(digests, digest)
	}

	return digests, nil
}

// Delete removes the blob with the given digest. Missing blobs are ignored.
func (s *MemoryBlobStore) Delete(ctx context.Context, digest blob.Digest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, digest)
	return nil
}

// Count returns the number of physical blobs currently stored.
//
// Used by tests to assert deduplication (two Puts of identical bytes must
// leave exactly one physical copy).
func (s *MemoryBlobStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
