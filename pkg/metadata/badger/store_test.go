package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshmanb4u/v7files/pkg/metadata"
	"github.com/lakshmanb4u/v7files/pkg/metadata/storetest"
)

func newTestStore(t *testing.T) *BadgerMetadataStore {
	t.Helper()

	store, err := NewBadgerMetadataStore(context.Background(), Options{InMemory: true})
	require.NoError(t, err)
	return store
}

func TestBadgerMetadataStore(t *testing.T) {
	suite := &storetest.Suite{
		NewStore: func(t *testing.T) metadata.Store {
			return newTestStore(t)
		},
	}
	suite.Run(t)
}

func TestBadgerMetadataStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewBadgerMetadataStore(ctx, Options{Path: dir})
	require.NoError(t, err)

	created, err := store.Create(ctx, &metadata.Record{Name: "durable.txt"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewBadgerMetadataStore(ctx, Options{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	fetched, err := reopened.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "durable.txt", fetched.Name)
	assert.Equal(t, metadata.InitialVersion, fetched.Version)

	roots, err := reopened.Roots(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, created.ID, roots[0].ID)
}

func TestBadgerMetadataStoreIndexFollowsMove(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	parent, err := store.Create(ctx, &metadata.Record{Name: "dir"})
	require.NoError(t, err)

	// A root record moved under a parent must leave the roots index.
	loose, err := store.Create(ctx, &metadata.Record{Name: "loose.txt"})
	require.NoError(t, err)

	_, err = store.ConditionalUpdate(ctx, loose.ID, loose.Version, metadata.Change{
		ParentID: &parent.ID,
	})
	require.NoError(t, err)

	roots, err := store.Roots(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, parent.ID, roots[0].ID)

	children, err := store.Children(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, loose.ID, children[0].ID)
}
