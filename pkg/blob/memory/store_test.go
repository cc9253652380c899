package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshmanb4u/v7files/pkg/blob"
	"github.com/lakshmanb4u/v7files/pkg/blob/blobtest"
)

func TestMemoryBlobStore(t *testing.T) {
	suite := &blobtest.Suite{
		NewStore: func(t *testing.T) blob.Store {
			store, err := NewMemoryBlobStore(context.Background())
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestMemoryBlobStoreDeduplication(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryBlobStore(ctx)
	require.NoError(t, err)

	data := []byte("stored exactly once")
	first, err := store.Put(ctx, data)
	require.NoError(t, err)

	second, err := store.Put(ctx, data)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.Count())
}

func TestMemoryBlobStoreCancelledContext(t *testing.T) {
	store, err := NewMemoryBlobStore(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Put(ctx, []byte("data"))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.Open(ctx, blob.DigestOf([]byte("data")))
	assert.ErrorIs(t, err, context.Canceled)
}
