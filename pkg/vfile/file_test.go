package vfile

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshmanb4u/v7files/pkg/blob"
	blobmemory "github.com/lakshmanb4u/v7files/pkg/blob/memory"
	"github.com/lakshmanb4u/v7files/pkg/metadata"
	metamemory "github.com/lakshmanb4u/v7files/pkg/metadata/memory"
)

func newTestStores(t *testing.T) (metadata.Store, *blobmemory.MemoryBlobStore) {
	t.Helper()

	meta, err := metamemory.NewMemoryMetadataStore(context.Background())
	require.NoError(t, err)
	blobs, err := blobmemory.NewMemoryBlobStore(context.Background())
	require.NoError(t, err)
	return meta, blobs
}

func readAll(t *testing.T, reader io.ReadCloser) []byte {
	t.Helper()

	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	return data
}

func TestCreateChildWithContent(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	root, err := CreateRoot(ctx, meta, blobs, "root")
	require.NoError(t, err)
	assert.Nil(t, root.ParentID())
	assert.False(t, root.HasContent())

	child, err := root.CreateChild(ctx, []byte("hello"), "a.txt", "text/plain")
	require.NoError(t, err)

	// SHA-1("hello") in hex.
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", child.HexDigest())
	require.NotNil(t, child.Length())
	assert.Equal(t, int64(5), *child.Length())
	require.NotNil(t, child.ParentID())
	assert.Equal(t, root.ID(), *child.ParentID())
	assert.Equal(t, "a.txt", child.Name())
	assert.Equal(t, "text/plain", child.ContentType())
	assert.Equal(t, metadata.InitialVersion, child.Version())

	assert.Equal(t, []byte("hello"), readAll(t, mustContent(t, child)))
}

func mustContent(t *testing.T, f *File) io.ReadCloser {
	t.Helper()

	reader, err := f.Content(context.Background())
	require.NoError(t, err)
	return reader
}

func TestContentAbsentVersusMissing(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	root, err := CreateRoot(ctx, meta, blobs, "root")
	require.NoError(t, err)

	// No digest at all: a normal outcome.
	_, err = root.Content(ctx)
	assert.ErrorIs(t, err, ErrNoContent)

	// A digest with no matching blob: a broken reference, surfaced loudly.
	child, err := root.CreateChild(ctx, []byte("doomed"), "b.txt", "")
	require.NoError(t, err)
	require.NoError(t, blobs.Delete(ctx, *child.Digest()))

	_, err = child.Content(ctx)
	assert.ErrorIs(t, err, ErrContentMissing)
}

func TestContentCachedPerNode(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	root, err := CreateRoot(ctx, meta, blobs, "root")
	require.NoError(t, err)
	child, err := root.CreateChild(ctx, []byte("cache me"), "c.txt", "")
	require.NoError(t, err)

	// First read populates the node's cache.
	assert.Equal(t, []byte("cache me"), readAll(t, mustContent(t, child)))

	// Even with the blob gone from the backend, the cached handle serves
	// reads for this node's lifetime.
	require.NoError(t, blobs.Delete(ctx, *child.Digest()))
	assert.Equal(t, []byte("cache me"), readAll(t, mustContent(t, child)))

	// A fresh node instance has no cache and must hit the backend.
	fresh, err := Load(ctx, meta, blobs, child.ID())
	require.NoError(t, err)
	_, err = fresh.Content(ctx)
	assert.ErrorIs(t, err, ErrContentMissing)
}

func TestSetContentDeduplicates(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	root, err := CreateRoot(ctx, meta, blobs, "root")
	require.NoError(t, err)

	a, err := root.CreateChild(ctx, []byte("same bytes"), "a.txt", "")
	require.NoError(t, err)
	b, err := root.CreateChild(ctx, []byte("same bytes"), "b.txt", "")
	require.NoError(t, err)

	// Identical content converges to the same digest and one physical blob.
	assert.Equal(t, a.HexDigest(), b.HexDigest())
	assert.Equal(t, 1, blobs.Count())
}

func TestRenameAdvancesVersion(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	root, err := CreateRoot(ctx, meta, blobs, "root")
	require.NoError(t, err)
	child, err := root.CreateChild(ctx, nil, "old.txt", "")
	require.NoError(t, err)

	before := child.Version()
	require.NoError(t, child.Rename(ctx, "new.txt"))

	// The in-memory snapshot advances with the persisted record.
	assert.Equal(t, "new.txt", child.Name())
	assert.Equal(t, before+1, child.Version())

	fetched, err := Load(ctx, meta, blobs, child.ID())
	require.NoError(t, err)
	assert.Equal(t, "new.txt", fetched.Name())
}

func TestMoveToIsSingleUpdate(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	src, err := CreateRoot(ctx, meta, blobs, "src")
	require.NoError(t, err)
	dst, err := CreateRoot(ctx, meta, blobs, "dst")
	require.NoError(t, err)
	child, err := src.CreateChild(ctx, nil, "file.txt", "")
	require.NoError(t, err)

	before := child.Version()
	require.NoError(t, child.MoveTo(ctx, dst.ID(), "moved.txt"))

	// Parent and name changed together under one version transition.
	assert.Equal(t, before+1, child.Version())
	require.NotNil(t, child.ParentID())
	assert.Equal(t, dst.ID(), *child.ParentID())
	assert.Equal(t, "moved.txt", child.Name())

	_, err = src.Child(ctx, "file.txt")
	assert.ErrorIs(t, err, metadata.ErrNotFound)

	moved, err := dst.Child(ctx, "moved.txt")
	require.NoError(t, err)
	assert.Equal(t, child.ID(), moved.ID())
}

func TestStaleVersionLoserKeepsWinnerState(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	root, err := CreateRoot(ctx, meta, blobs, "root")
	require.NoError(t, err)
	created, err := root.CreateChild(ctx, nil, "contested.txt", "")
	require.NoError(t, err)

	// Two callers fetch the node at the same version.
	callerA, err := Load(ctx, meta, blobs, created.ID())
	require.NoError(t, err)
	callerB, err := Load(ctx, meta, blobs, created.ID())
	require.NoError(t, err)

	// Caller A renames and wins the version transition.
	require.NoError(t, callerA.Rename(ctx, "renamed-by-a.txt"))

	// Caller B still holds the old version; its move must fail stale.
	err = callerB.MoveTo(ctx, root.ID(), "moved-by-b.txt")
	require.Error(t, err)

	var stale *metadata.StaleVersionError
	require.True(t, errors.As(err, &stale))
	assert.Equal(t, created.ID(), stale.ID)

	// The name set by A is intact.
	fetched, err := Load(ctx, meta, blobs, created.ID())
	require.NoError(t, err)
	assert.Equal(t, "renamed-by-a.txt", fetched.Name())
}

func TestDeleteIsVersionGated(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	root, err := CreateRoot(ctx, meta, blobs, "root")
	require.NoError(t, err)
	child, err := root.CreateChild(ctx, nil, "doomed.txt", "")
	require.NoError(t, err)

	// A stale handle cannot delete a node that moved on.
	staleHandle, err := Load(ctx, meta, blobs, child.ID())
	require.NoError(t, err)
	require.NoError(t, child.Rename(ctx, "survivor.txt"))

	err = staleHandle.Delete(ctx)
	assert.True(t, metadata.IsStaleVersion(err))

	// The current handle can.
	require.NoError(t, child.Delete(ctx))
	_, err = Load(ctx, meta, blobs, child.ID())
	assert.ErrorIs(t, err, metadata.ErrNotFound)
}

func TestSetContentUpdatesDigestLengthType(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	root, err := CreateRoot(ctx, meta, blobs, "root")
	require.NoError(t, err)
	child, err := root.CreateChild(ctx, nil, "notes.txt", "")
	require.NoError(t, err)
	require.False(t, child.HasContent())

	require.NoError(t, child.SetContent(ctx, []byte("first draft"), "text/plain"))

	require.True(t, child.HasContent())
	assert.Equal(t, blob.DigestOf([]byte("first draft")), *child.Digest())
	assert.Equal(t, int64(len("first draft")), *child.Length())
	assert.Equal(t, "text/plain", child.ContentType())
	assert.Equal(t, []byte("first draft"), readAll(t, mustContent(t, child)))

	// Replacing content swaps the cached handle to the new blob.
	require.NoError(t, child.SetContent(ctx, []byte("second draft"), "text/plain"))
	assert.Equal(t, []byte("second draft"), readAll(t, mustContent(t, child)))
}

func TestLengthPresentIffDigestPresent(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	root, err := CreateRoot(ctx, meta, blobs, "root")
	require.NoError(t, err)

	withContent, err := root.CreateChild(ctx, []byte("x"), "a.txt", "")
	require.NoError(t, err)
	withoutContent, err := root.CreateChild(ctx, nil, "dir", "")
	require.NoError(t, err)

	assert.NotNil(t, withContent.Digest())
	assert.NotNil(t, withContent.Length())
	assert.Nil(t, withoutContent.Digest())
	assert.Nil(t, withoutContent.Length())
}

func TestChildrenHoldParentReference(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	root, err := CreateRoot(ctx, meta, blobs, "root")
	require.NoError(t, err)
	_, err = root.CreateChild(ctx, nil, "a", "")
	require.NoError(t, err)
	_, err = root.CreateChild(ctx, nil, "b", "")
	require.NoError(t, err)

	children, err := root.Children(ctx)
	require.NoError(t, err)
	require.Len(t, children, 2)

	for _, child := range children {
		require.NotNil(t, child.ParentID())
		assert.Equal(t, root.ID(), *child.ParentID())
	}
}
