// Package storetest provides a reusable contract test suite for
// metadata.Store implementations.
//
// The suite asserts the interface contract (atomic create, compound-key
// conditional update/remove, tree navigation, error taxonomy), not
// implementation details, making it reusable across backends.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshmanb4u/v7files/pkg/blob"
	"github.com/lakshmanb4u/v7files/pkg/metadata"
)

// Suite is a contract test suite for metadata.Store implementations.
//
// Usage:
//
//	func TestMemoryMetadataStore(t *testing.T) {
//	    suite := &storetest.Suite{
//	        NewStore: func(t *testing.T) metadata.Store {
//	            store, err := memory.NewMemoryMetadataStore(context.Background())
//	            require.NoError(t, err)
//	            return store
//	        },
//	    }
//	    suite.Run(t)
//	}
type Suite struct {
	// NewStore creates a fresh store for each test, ensuring isolation.
	// Stores are closed by the suite when the test finishes.
	NewStore func(t *testing.T) metadata.Store
}

// Run executes all tests in the suite.
func (s *Suite) Run(t *testing.T) {
	t.Run("CreateAssignsIdentity", s.testCreateAssignsIdentity)
	t.Run("CreateValidatesLengthDigest", s.testCreateValidatesLengthDigest)
	t.Run("GetMissing", s.testGetMissing)
	t.Run("ChildrenAndChild", s.testChildrenAndChild)
	t.Run("ChildMissing", s.testChildMissing)
	t.Run("Roots", s.testRoots)
	t.Run("ConditionalUpdate", s.testConditionalUpdate)
	t.Run("ConditionalUpdateStale", s.testConditionalUpdateStale)
	t.Run("ConditionalUpdateAfterRemove", s.testConditionalUpdateAfterRemove)
	t.Run("ConditionalUpdateMove", s.testConditionalUpdateMove)
	t.Run("ConditionalRemove", s.testConditionalRemove)
	t.Run("ConditionalRemoveStale", s.testConditionalRemoveStale)
	t.Run("AllDigests", s.testAllDigests)
	t.Run("Healthcheck", s.testHealthcheck)
}

func (s *Suite) newStore(t *testing.T) metadata.Store {
	store := s.NewStore(t)
	t.Cleanup(func() { store.Close() })
	return store
}

// createNode is a helper that creates a record with the given parent, name
// and optional content.
func createNode(t *testing.T, store metadata.Store, parentID *uuid.UUID, name string, content []byte) *metadata.Record {
	t.Helper()

	rec := &metadata.Record{
		ParentID: parentID,
		Name:     name,
	}
	if content != nil {
		digest := blob.DigestOf(content)
		length := int64(len(content))
		rec.Digest = &digest
		rec.Length = &length
	}

	created, err := store.Create(context.Background(), rec)
	require.NoError(t, err)
	return created
}

func (s *Suite) testCreateAssignsIdentity(t *testing.T) {
	ctx := context.Background()
	store := s.newStore(t)

	created := createNode(t, store, nil, "root", nil)

	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, metadata.InitialVersion, created.Version)
	assert.Equal(t, "root", created.Name)
	assert.Nil(t, created.ParentID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.UpdatedAt.IsZero())

	fetched, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, created.Version, fetched.Version)
}

func (s *Suite) testCreateValidatesLengthDigest(t *testing.T) {
	ctx := context.Background()
	store := s.newStore(t)

	length := int64(5)
	_, err := store.Create(ctx, &metadata.Record{
		Name:   "broken",
		Length: &length, // Length without Digest
	})
	assert.ErrorIs(t, err, metadata.ErrInvalidArgument)

	digest := blob.DigestOf([]byte("hello"))
	_, err = store.Create(ctx, &metadata.Record{
		Name:   "broken",
		Digest: &digest, // Digest without Length
	})
	assert.ErrorIs(t, err, metadata.ErrInvalidArgument)
}

func (s *Suite) testGetMissing(t *testing.T) {
	ctx := context.Background()
	store := s.newStore(t)

	_, err := store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, metadata.ErrNotFound)
}

func (s *Suite) testChildrenAndChild(t *testing.T) {
	ctx := context.Background()
	store := s.newStore(t)

	root := createNode(t, store, nil, "root", nil)
	a := createNode(t, store, &root.ID, "a.txt", []byte("aaa"))
	b := createNode(t, store, &root.ID, "b.txt", []byte("bbb"))

	// A child of a child must not leak into the parent's listing.
	createNode(t, store, &a.ID, "nested.txt", nil)

	children, err := store.Children(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)

	names := []string{children[0].Name, children[1].Name}
	assert.Contains(t, names, "a.txt")
	assert.Contains(t, names, "b.txt")

	child, err := store.Child(ctx, root.ID, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, b.ID, child.ID)

	// Empty directories list no children.
	none, err := store.Children(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func (s *Suite) testChildMissing(t *testing.T) {
	ctx := context.Background()
	store := s.newStore(t)

	root := createNode(t, store, nil, "root", nil)

	_, err := store.Child(ctx, root.ID, "missing.txt")
	assert.ErrorIs(t, err, metadata.ErrNotFound)
}

func (s *Suite) testRoots(t *testing.T) {
	ctx := context.Background()
	store := s.newStore(t)

	r1 := createNode(t, store, nil, "alpha", nil)
	r2 := createNode(t, store, nil, "beta", nil)
	createNode(t, store, &r1.ID, "child.txt", nil)

	roots, err := store.Roots(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 2)

	ids := []uuid.UUID{roots[0].ID, roots[1].ID}
	assert.Contains(t, ids, r1.ID)
	assert.Contains(t, ids, r2.ID)
}

func (s *Suite) testConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	store := s.newStore(t)

	rec := createNode(t, store, nil, "before.txt", nil)

	newName := "after.txt"
	updated, err := store.ConditionalUpdate(ctx, rec.ID, rec.Version, metadata.Change{
		Name: &newName,
	})
	require.NoError(t, err)

	// The version advances by exactly one.
	assert.Equal(t, rec.Version+1, updated.Version)
	assert.Equal(t, "after.txt", updated.Name)

	fetched, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "after.txt", fetched.Name)
	assert.Equal(t, rec.Version+1, fetched.Version)
}

func (s *Suite) testConditionalUpdateStale(t *testing.T) {
	ctx := context.Background()
	store := s.newStore(t)

	rec := createNode(t, store, nil, "contested.txt", nil)

	// First writer wins.
	winner := "winner.txt"
	_, err := store.ConditionalUpdate(ctx, rec.ID, rec.Version, metadata.Change{Name: &winner})
	require.NoError(t, err)

	// Second writer still holds the old version and must lose.
	loser := "loser.txt"
	_, err = store.ConditionalUpdate(ctx, rec.ID, rec.Version, metadata.Change{Name: &loser})
	require.Error(t, err)

	var stale *metadata.StaleVersionError
	require.True(t, errors.As(err, &stale))
	assert.Equal(t, rec.ID, stale.ID)
	assert.Equal(t, rec.Version, stale.ExpectedVersion)

	// The losing write must not have mutated the record.
	fetched, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "winner.txt", fetched.Name)
}

func (s *Suite) testConditionalUpdateAfterRemove(t *testing.T) {
	ctx := context.Background()
	store := s.newStore(t)

	rec := createNode(t, store, nil, "doomed.txt", nil)
	require.NoError(t, store.ConditionalRemove(ctx, rec.ID, rec.Version))

	name := "ghost.txt"
	_, err := store.ConditionalUpdate(ctx, rec.ID, rec.Version, metadata.Change{Name: &name})
	assert.True(t, metadata.IsStaleVersion(err))
}

func (s *Suite) testConditionalUpdateMove(t *testing.T) {
	ctx := context.Background()
	store := s.newStore(t)

	oldParent := createNode(t, store, nil, "old", nil)
	newParent := createNode(t, store, nil, "new", nil)
	rec := createNode(t, store, &oldParent.ID, "file.txt", nil)

	// Parent and name change in a single version-gated update.
	newName := "renamed.txt"
	updated, err := store.ConditionalUpdate(ctx, rec.ID, rec.Version, metadata.Change{
		ParentID: &newParent.ID,
		Name:     &newName,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ParentID)
	assert.Equal(t, newParent.ID, *updated.ParentID)
	assert.Equal(t, "renamed.txt", updated.Name)

	// The move is visible through tree navigation on both sides.
	oldChildren, err := store.Children(ctx, oldParent.ID)
	require.NoError(t, err)
	assert.Empty(t, oldChildren)

	moved, err := store.Child(ctx, newParent.ID, "renamed.txt")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, moved.ID)
}

func (s *Suite) testConditionalRemove(t *testing.T) {
	ctx := context.Background()
	store := s.newStore(t)

	root := createNode(t, store, nil, "root", nil)
	rec := createNode(t, store, &root.ID, "gone.txt", nil)

	require.NoError(t, store.ConditionalRemove(ctx, rec.ID, rec.Version))

	_, err := store.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, metadata.ErrNotFound)

	children, err := store.Children(ctx, root.ID)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func (s *Suite) testConditionalRemoveStale(t *testing.T) {
	ctx := context.Background()
	store := s.newStore(t)

	rec := createNode(t, store, nil, "survivor.txt", nil)

	err := store.ConditionalRemove(ctx, rec.ID, rec.Version+1)
	assert.True(t, metadata.IsStaleVersion(err))

	// The record must survive the failed remove.
	_, err = store.Get(context.Background(), rec.ID)
	assert.NoError(t, err)
}

func (s *Suite) testAllDigests(t *testing.T) {
	ctx := context.Background()
	store := s.newStore(t)

	root := createNode(t, store, nil, "root", nil)
	createNode(t, store, &root.ID, "a.txt", []byte("shared"))
	createNode(t, store, &root.ID, "b.txt", []byte("shared"))
	createNode(t, store, &root.ID, "c.txt", []byte("unique"))

	digests, err := store.AllDigests(ctx)
	require.NoError(t, err)

	// Two records share a digest; the snapshot is deduplicated.
	require.Len(t, digests, 2)
	assert.Contains(t, digests, blob.DigestOf([]byte("shared")))
	assert.Contains(t, digests, blob.DigestOf([]byte("unique")))
}

func (s *Suite) testHealthcheck(t *testing.T) {
	store := s.newStore(t)
	assert.NoError(t, store.Healthcheck(context.Background()))
}
