// Package blobtest provides a reusable contract test suite for blob.Store
// implementations.
//
// The suite tests the interface contract, not implementation details, making
// it reusable across backends (memory, filesystem, S3).
package blobtest

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshmanb4u/v7files/pkg/blob"
)

// Suite is a contract test suite for blob.Store implementations.
//
// Usage:
//
//	func TestMemoryBlobStore(t *testing.T) {
//	    suite := &blobtest.Suite{
//	        NewStore: func(t *testing.T) blob.Store {
//	            store, err := memory.NewMemoryBlobStore(context.Background())
//	            require.NoError(t, err)
//	            return store
//	        },
//	    }
//	    suite.Run(t)
//	}
type Suite struct {
	// NewStore creates a fresh store for each test, ensuring isolation.
	NewStore func(t *testing.T) blob.Store
}

// Run executes all tests in the suite.
func (s *Suite) Run(t *testing.T) {
	t.Run("PutAndOpen", s.testPutAndOpen)
	t.Run("PutIsIdempotent", s.testPutIsIdempotent)
	t.Run("OpenMissing", s.testOpenMissing)
	t.Run("Stat", s.testStat)
	t.Run("StatMissing", s.testStatMissing)
	t.Run("List", s.testList)
	t.Run("Delete", s.testDelete)
	t.Run("DeleteMissing", s.testDeleteMissing)
}

func (s *Suite) testPutAndOpen(t *testing.T) {
	ctx := context.Background()
	store := s.NewStore(t)

	data := []byte("some file content")
	digest, err := store.Put(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, blob.DigestOf(data), digest)

	reader, err := store.Open(ctx, digest)
	require.NoError(t, err)
	defer reader.Close()

	read, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, data, read)
}

func (s *Suite) testPutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := s.NewStore(t)

	data := []byte("duplicate content")
	first, err := store.Put(ctx, data)
	require.NoError(t, err)

	second, err := store.Put(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Content must still be readable after the second Put.
	reader, err := store.Open(ctx, first)
	require.NoError(t, err)
	defer reader.Close()

	read, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, data, read)
}

func (s *Suite) testOpenMissing(t *testing.T) {
	ctx := context.Background()
	store := s.NewStore(t)

	_, err := store.Open(ctx, blob.DigestOf([]byte("never stored")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, blob.ErrBlobNotFound))
}

func (s *Suite) testStat(t *testing.T) {
	ctx := context.Background()
	store := s.NewStore(t)

	data := []byte("twelve bytes")
	digest, err := store.Put(ctx, data)
	require.NoError(t, err)

	size, err := store.Stat(ctx, digest)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)
}

func (s *Suite) testStatMissing(t *testing.T) {
	ctx := context.Background()
	store := s.NewStore(t)

	_, err := store.Stat(ctx, blob.DigestOf([]byte("never stored")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, blob.ErrBlobNotFound))
}

func (s *Suite) testList(t *testing.T) {
	ctx := context.Background()
	store := s.NewStore(t)

	d1, err := store.Put(ctx, []byte("first"))
	require.NoError(t, err)
	d2, err := store.Put(ctx, []byte("second"))
	require.NoError(t, err)

	digests, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, digests, 2)
	assert.Contains(t, digests, d1)
	assert.Contains(t, digests, d2)
}

func (s *Suite) testDelete(t *testing.T) {
	ctx := context.Background()
	store := s.NewStore(t)

	digest, err := store.Put(ctx, []byte("short-lived"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, digest))

	_, err = store.Open(ctx, digest)
	assert.True(t, errors.Is(err, blob.ErrBlobNotFound))
}

func (s *Suite) testDeleteMissing(t *testing.T) {
	ctx := context.Background()
	store := s.NewStore(t)

	// Deleting a blob that was never stored is not an error.
	err := store.Delete(ctx, blob.DigestOf([]byte("never stored")))
	assert.NoError(t, err)
}
