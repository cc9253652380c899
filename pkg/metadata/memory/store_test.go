package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshmanb4u/v7files/pkg/metadata"
	"github.com/lakshmanb4u/v7files/pkg/metadata/storetest"
)

func TestMemoryMetadataStore(t *testing.T) {
	suite := &storetest.Suite{
		NewStore: func(t *testing.T) metadata.Store {
			store, err := NewMemoryMetadataStore(context.Background())
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestMemoryMetadataStoreReturnsClones(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryMetadataStore(ctx)
	require.NoError(t, err)

	created, err := store.Create(ctx, &metadata.Record{
		Name: "immutable.txt",
		ACL:  metadata.ACL{metadata.PermissionRead: {"u1"}},
	})
	require.NoError(t, err)

	// Mutating a returned record must not affect stored state.
	created.Name = "tampered"
	created.ACL[metadata.PermissionRead][0] = "intruder"

	fetched, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "immutable.txt", fetched.Name)
	assert.Equal(t, []string{"u1"}, fetched.ACL[metadata.PermissionRead])
}

func TestMemoryMetadataStoreCancelledContext(t *testing.T) {
	store, err := NewMemoryMetadataStore(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Create(ctx, &metadata.Record{Name: "x"})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.Roots(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
