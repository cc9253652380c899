// Package memory implements an in-memory metadata store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lakshmanb4u/v7files/pkg/blob"
	"github.com/lakshmanb4u/v7files/pkg/metadata"
)

// MemoryMetadataStore implements metadata.Store using in-memory maps.
//
// This implementation is designed for:
//   - Testing and development
//   - Ephemeral deployments where metadata need not survive restarts
//
// Thread Safety:
// All operations are protected by a single RWMutex. The compare-and-swap of
// ConditionalUpdate/ConditionalRemove happens entirely inside the write
// lock, so the (id, version) check and the mutation are atomic. Records are
// cloned on the way in and out; callers never share memory with the store.
type MemoryMetadataStore struct {
	// records stores the current version of every record keyed by id
	records map[uuid.UUID]*metadata.Record

	// mu protects concurrent access to records
	mu sync.RWMutex

	// now returns the current time; overridable in tests
	now func() time.Time
}

// NewMemoryMetadataStore creates an empty in-memory metadata store.
func NewMemoryMetadataStore(ctx context.Context) (*MemoryMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &MemoryMetadataStore{
		records: make(map[uuid.UUID]*metadata.Record),
		now:     time.Now,
	}, nil
}

// Get fetches the current record with the given id.
func (s *MemoryMetadataStore) Get(ctx context.Context, id uuid.UUID) (*metadata.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, fmt.Errorf("record %s: %w", id, metadata.ErrNotFound)
	}

	return rec.Clone(), nil
}

// Children returns all records whose ParentID equals parentID, sorted by
// name for deterministic listings.
func (s *MemoryMetadataStore) Children(ctx context.Context, parentID uuid.UUID) ([]*metadata.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var children []*metadata.Record
	for _, rec := range s.records {
		if rec.ParentID != nil && *rec.ParentID == parentID {
			children = append(children, rec.Clone())
		}
	}

	sort.Slice(children, func(i, j int) bool {
		return children[i].Name < children[j].Name
	})

	return children, nil
}

// Child returns the first child of parentID with the given name.
func (s *MemoryMetadataStore) Child(ctx context.Context, parentID uuid.UUID, name string) (*metadata.Record, error) {
	children, err := s.Children(ctx, parentID)
	if err != nil {
		return nil, err
	}

	for _, child := range children {
		if child.Name == name {
			return child, nil
		}
	}

	return nil, fmt.Errorf("child %q of %s: %w", name, parentID, metadata.ErrNotFound)
}

// Roots returns all records without a parent, sorted by name.
func (s *MemoryMetadataStore) Roots(ctx context.Context) ([]*metadata.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var roots []*metadata.Record
	for _, rec := range s.records {
		if rec.ParentID == nil {
			roots = append(roots, rec.Clone())
		}
	}

	sort.Slice(roots, func(i, j int) bool {
		return roots[i].Name < roots[j].Name
	})

	return roots, nil
}

// Create atomically persists a new record with a fresh id and the initial
// version.
func (s *MemoryMetadataStore) Create(ctx context.Context, rec *metadata.Record) (*metadata.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := metadata.ValidateRecord(rec); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stored := rec.Clone()
	stored.ID = uuid.New()
	stored.Version = metadata.InitialVersion
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.records[stored.ID] = stored

	return stored.Clone(), nil
}

// ConditionalUpdate applies change to the record, conditioned on its current
// version matching expectedVersion.
func (s *MemoryMetadataStore) ConditionalUpdate(ctx context.Context, id uuid.UUID, expectedVersion uint64, change metadata.Change) (*metadata.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := metadata.ValidateChange(change); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[id]
	if !exists || rec.Version != expectedVersion {
		// Zero records matched the compound key: concurrently modified or
		// deleted elsewhere.
		return nil, staleError(id, rec, expectedVersion)
	}

	updated := rec.Clone()
	change.Apply(updated, s.now())
	s.records[id] = updated

	return updated.Clone(), nil
}

// ConditionalRemove deletes the record, conditioned on its current version
// matching expectedVersion.
func (s *MemoryMetadataStore) ConditionalRemove(ctx context.Context, id uuid.UUID, expectedVersion uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[id]
	if !exists || rec.Version != expectedVersion {
		return staleError(id, rec, expectedVersion)
	}

	delete(s.records, id)
	return nil
}

// AllDigests returns the deduplicated digests referenced by any record.
func (s *MemoryMetadataStore) AllDigests(ctx context.Context) ([]blob.Digest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[blob.Digest]struct{})
	var digests []blob.Digest
	for _, rec := range s.records {
		if rec.Digest == nil {
			continue
		}
		if _, dup := seen[*rec.Digest]; dup {
			continue
		}
		seen[*rec.Digest] = struct{}{}
		digests = append(digests, *rec.Digest)
	}

	return digests, nil
}

// Healthcheck always succeeds for the in-memory store.
func (s *MemoryMetadataStore) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op for the in-memory store.
func (s *MemoryMetadataStore) Close() error {
	return nil
}

// staleError builds the StaleVersionError for a failed compare-and-swap,
// including the stored name when the record still exists.
func staleError(id uuid.UUID, rec *metadata.Record, expectedVersion uint64) error {
	name := ""
	if rec != nil {
		name = rec.Name
	}
	return &metadata.StaleVersionError{
		ID:              id,
		Name:            name,
		ExpectedVersion: expectedVersion,
	}
}
