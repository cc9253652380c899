package gc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshmanb4u/v7files/pkg/blob"
	blobmemory "github.com/lakshmanb4u/v7files/pkg/blob/memory"
	"github.com/lakshmanb4u/v7files/pkg/metadata"
	metamemory "github.com/lakshmanb4u/v7files/pkg/metadata/memory"
	"github.com/lakshmanb4u/v7files/pkg/vfile"
)

func newTestStores(t *testing.T) (metadata.Store, *blobmemory.MemoryBlobStore) {
	t.Helper()
	meta, err := metamemory.NewMemoryMetadataStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })
	blobs, err := blobmemory.NewMemoryBlobStore(context.Background())
	require.NoError(t, err)
	return meta, blobs
}

func TestRunOnceDeletesOrphans(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	root, err := vfile.CreateRoot(ctx, meta, blobs, "root")
	require.NoError(t, err)

	_, err = root.CreateChild(ctx, []byte("kept"), "kept.txt", "text/plain")
	require.NoError(t, err)

	// Orphan: a blob no record points at.
	_, err = blobs.Put(ctx, []byte("orphaned"))
	require.NoError(t, err)

	collector := NewCollector(meta, blobs, Config{})
	result, err := collector.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Present)
	assert.Equal(t, 1, result.Referenced)
	assert.Equal(t, 1, result.Orphaned)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, blobs.Count())
}

func TestRunOnceKeepsReferencedBlobs(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	root, err := vfile.CreateRoot(ctx, meta, blobs, "root")
	require.NoError(t, err)

	child, err := root.CreateChild(ctx, []byte("payload"), "data.bin", "application/octet-stream")
	require.NoError(t, err)

	collector := NewCollector(meta, blobs, Config{})
	result, err := collector.RunOnce(ctx)
	require.NoError(t, err)

	assert.Zero(t, result.Orphaned)
	assert.Zero(t, result.Deleted)

	rc, err := child.Content(ctx)
	require.NoError(t, err)
	defer rc.Close()
}

func TestRunOnceCollectsAfterDelete(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	root, err := vfile.CreateRoot(ctx, meta, blobs, "root")
	require.NoError(t, err)

	child, err := root.CreateChild(ctx, []byte("soon gone"), "gone.txt", "text/plain")
	require.NoError(t, err)
	require.NoError(t, child.Delete(ctx))

	collector := NewCollector(meta, blobs, Config{})
	result, err := collector.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Orphaned)
	assert.Equal(t, 1, result.Deleted)
	assert.Zero(t, blobs.Count())
}

func TestRunOnceDryRun(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	_, err := blobs.Put(ctx, []byte("orphaned"))
	require.NoError(t, err)

	collector := NewCollector(meta, blobs, Config{DryRun: true})
	result, err := collector.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Orphaned)
	assert.Zero(t, result.Deleted)
	assert.Equal(t, 1, blobs.Count())
}

func TestRunOnceSharedBlobSurvivesWhileReferenced(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	root, err := vfile.CreateRoot(ctx, meta, blobs, "root")
	require.NoError(t, err)

	a, err := root.CreateChild(ctx, []byte("shared"), "a.txt", "text/plain")
	require.NoError(t, err)
	_, err = root.CreateChild(ctx, []byte("shared"), "b.txt", "text/plain")
	require.NoError(t, err)
	require.Equal(t, 1, blobs.Count())

	// Deleting one of the two nodes must not orphan the shared blob.
	require.NoError(t, a.Delete(ctx))

	collector := NewCollector(meta, blobs, Config{})
	result, err := collector.RunOnce(ctx)
	require.NoError(t, err)

	assert.Zero(t, result.Orphaned)
	assert.Equal(t, 1, blobs.Count())
}

// listHookStore wraps a blob store and invokes a hook after each List call.
type listHookStore struct {
	blob.Store
	afterList func()
}

func (s *listHookStore) List(ctx context.Context) ([]blob.Digest, error) {
	digests, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.afterList != nil {
		s.afterList()
	}
	return digests, nil
}

func TestRunOnceSparesBlobStoredBetweenScans(t *testing.T) {
	ctx := context.Background()
	meta, blobs := newTestStores(t)

	root, err := vfile.CreateRoot(ctx, meta, blobs, "root")
	require.NoError(t, err)

	// The child lands after the blob scan but before the digest scan, the
	// worst placement a concurrent writer can hit.
	var child *vfile.File
	hooked := &listHookStore{Store: blobs, afterList: func() {
		var err error
		child, err = root.CreateChild(ctx, []byte("fresh"), "fresh.txt", "text/plain")
		require.NoError(t, err)
	}}

	collector := NewCollector(meta, hooked, Config{})
	result, err := collector.RunOnce(ctx)
	require.NoError(t, err)

	assert.Zero(t, result.Orphaned)
	assert.Zero(t, result.Deleted)
	assert.Equal(t, 1, blobs.Count())

	require.NotNil(t, child)
	rc, err := child.Content(ctx)
	require.NoError(t, err)
	defer rc.Close()
}

func TestStartStop(t *testing.T) {
	meta, blobs := newTestStores(t)

	collector := NewCollector(meta, blobs, Config{Interval: time.Hour})
	collector.Start()

	done := make(chan struct{})
	go func() {
		collector.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not stop in time")
	}
}
