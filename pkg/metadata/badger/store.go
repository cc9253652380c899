// Package badger implements a BadgerDB-backed metadata store.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/lakshmanb4u/v7files/pkg/blob"
	"github.com/lakshmanb4u/v7files/pkg/metadata"
)

// BadgerMetadataStore implements metadata.Store using BadgerDB for
// persistence.
//
// This implementation is suitable for deployments where metadata must
// survive restarts without running an external database. It relies on
// Badger's transactions for the compare-and-swap discipline: a conditional
// update reads the current record, checks the expected version and writes
// the successor inside a single serializable transaction.
//
// Conflict Mapping:
// When two transactions race on the same record, Badger aborts one with
// ErrConflict. By then the winner has already advanced the version, so the
// loser's expected version is no longer current, so the abort is reported as
// a Stale Version failure, keeping the caller-visible semantics identical
// to the single-writer case.
//
// Thread Safety:
// Badger transactions are safe for concurrent use; the store adds no locks
// of its own.
type BadgerMetadataStore struct {
	db *badger.DB

	// now returns the current time; overridable in tests
	now func() time.Time
}

// Options configures the BadgerDB metadata store.
type Options struct {
	// Path is the directory holding the database files.
	// Ignored when InMemory is true.
	Path string

	// InMemory runs the database without touching disk. For tests.
	InMemory bool

	// SyncWrites makes every write durably synced before returning.
	SyncWrites bool
}

// NewBadgerMetadataStore opens (or creates) a BadgerDB-backed store.
func NewBadgerMetadataStore(ctx context.Context, opts Options) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	badgerOpts := badger.DefaultOptions(opts.Path).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &BadgerMetadataStore{
		db:  db,
		now: time.Now,
	}, nil
}

// Get fetches the current record with the given id.
func (s *BadgerMetadataStore) Get(ctx context.Context, id uuid.UUID) (*metadata.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *metadata.Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return nil, err
		}
		return nil, &metadata.StorageError{Op: "get", Err: err}
	}

	return rec, nil
}

// Children returns all records whose ParentID equals parentID, sorted by
// name.
func (s *BadgerMetadataStore) Children(ctx context.Context, parentID uuid.UUID) ([]*metadata.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var children []*metadata.Record
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := childrenPrefix(parentID)

		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			childID, err := childIDFromKey(it.Item().Key(), prefix)
			if err != nil {
				return fmt.Errorf("corrupt children index key %q: %w", it.Item().Key(), err)
			}

			child, err := getRecord(txn, childID)
			if err != nil {
				return fmt.Errorf("dangling children index entry for %s: %w", childID, err)
			}

			children = append(children, child)
		}
		return nil
	})
	if err != nil {
		return nil, &metadata.StorageError{Op: "children", Err: err}
	}

	sort.Slice(children, func(i, j int) bool {
		return children[i].Name < children[j].Name
	})

	return children, nil
}

// Child returns the first child of parentID with the given name.
func (s *BadgerMetadataStore) Child(ctx context.Context, parentID uuid.UUID, name string) (*metadata.Record, error) {
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
func (s *BadgerMetadataStore) Roots(ctx context.Context) ([]*metadata.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var roots []*metadata.Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: rootsPrefix()})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			id, err := rootIDFromKey(it.Item().Key())
			if err != nil {
				return fmt.Errorf("corrupt roots index key %q: %w", it.Item().Key(), err)
			}

			root, err := getRecord(txn, id)
			if err != nil {
				return fmt.Errorf("dangling roots index entry for %s: %w", id, err)
			}

			roots = append(roots, root)
		}
		return nil
	})
	if err != nil {
		return nil, &metadata.StorageError{Op: "roots", Err: err}
	}

	sort.Slice(roots, func(i, j int) bool {
		return roots[i].Name < roots[j].Name
	})

	return roots, nil
}

// Create atomically persists a new record with a fresh id and the initial
// version.
func (s *BadgerMetadataStore) Create(ctx context.Context, rec *metadata.Record) (*metadata.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := metadata.ValidateRecord(rec); err != nil {
		return nil, err
	}

	now := s.now()
	stored := rec.Clone()
	stored.ID = uuid.New()
	stored.Version = metadata.InitialVersion
	stored.CreatedAt = now
	stored.UpdatedAt = now

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := putRecord(txn, stored); err != nil {
			return err
		}
		return setIndexes(txn, stored)
	})
	if err != nil {
		return nil, &metadata.StorageError{Op: "create", Err: err}
	}

	return stored.Clone(), nil
}

// ConditionalUpdate applies change to the record, conditioned on its current
// version matching expectedVersion.
func (s *BadgerMetadataStore) ConditionalUpdate(ctx context.Context, id uuid.UUID, expectedVersion uint64, change metadata.Change) (*metadata.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := metadata.ValidateChange(change); err != nil {
		return nil, err
	}

	var updated *metadata.Record
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := getRecord(txn, id)
		if err != nil {
			if errors.Is(err, metadata.ErrNotFound) {
				return &metadata.StaleVersionError{ID: id, ExpectedVersion: expectedVersion}
			}
			return err
		}

		if current.Version != expectedVersion {
			return &metadata.StaleVersionError{
				ID:              id,
				Name:            current.Name,
				ExpectedVersion: expectedVersion,
			}
		}

		updated = current.Clone()
		change.Apply(updated, s.now())

		// A parent change moves the record between index entries.
		if parentChanged(current, updated) {
			if err := clearIndexes(txn, current); err != nil {
				return err
			}
			if err := setIndexes(txn, updated); err != nil {
				return err
			}
		}

		return putRecord(txn, updated)
	})
	if err != nil {
		return nil, mapWriteError("update", id, expectedVersion, err)
	}

	return updated.Clone(), nil
}

// ConditionalRemove deletes the record, conditioned on its current version
// matching expectedVersion.
func (s *BadgerMetadataStore) ConditionalRemove(ctx context.Context, id uuid.UUID, expectedVersion uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := getRecord(txn, id)
		if err != nil {
			if errors.Is(err, metadata.ErrNotFound) {
				return &metadata.StaleVersionError{ID: id, ExpectedVersion: expectedVersion}
			}
			return err
		}

		if current.Version != expectedVersion {
			return &metadata.StaleVersionError{
				ID:              id,
				Name:            current.Name,
				ExpectedVersion: expectedVersion,
			}
		}

		if err := clearIndexes(txn, current); err != nil {
			return err
		}
		return txn.Delete(recordKey(id))
	})
	if err != nil {
		return mapWriteError("remove", id, expectedVersion, err)
	}

	return nil
}

// AllDigests returns the deduplicated digests referenced by any record.
func (s *BadgerMetadataStore) AllDigests(ctx context.Context) ([]blob.Digest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[blob.Digest]struct{})
	var digests []blob.Digest

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:         []byte(prefixRecord),
			PrefetchValues: true,
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			err := it.Item().Value(func(value []byte) error {
				rec, err := decodeRecord(value)
				if err != nil {
					return err
				}
				if rec.Digest == nil {
					return nil
				}
				if _, dup := seen[*rec.Digest]; !dup {
					seen[*rec.Digest] = struct{}{}
					digests = append(digests, *rec.Digest)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, &metadata.StorageError{Op: "all-digests", Err: err}
	}

	return digests, nil
}

// Healthcheck verifies the database accepts reads.
func (s *BadgerMetadataStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("healthcheck"))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return &metadata.StorageError{Op: "healthcheck", Err: err}
	}
	return nil
}

// Close closes the underlying database.
func (s *BadgerMetadataStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Transaction helpers
// ============================================================================

// getRecord loads and decodes a record inside a transaction.
func getRecord(txn *badger.Txn, id uuid.UUID) (*metadata.Record, error) {
	item, err := txn.Get(recordKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("record %s: %w", id, metadata.ErrNotFound)
		}
		return nil, err
	}

	var rec *metadata.Record
	err = item.Value(func(value []byte) error {
		rec, err = decodeRecord(value)
		return err
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// putRecord encodes and writes a record inside a transaction.
func putRecord(txn *badger.Txn, rec *metadata.Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return txn.Set(recordKey(rec.ID), data)
}

// setIndexes writes the children/roots index entry for a record.
func setIndexes(txn *badger.Txn, rec *metadata.Record) error {
	if rec.ParentID == nil {
		return txn.Set(rootKey(rec.ID), nil)
	}
	return txn.Set(childKey(*rec.ParentID, rec.ID), nil)
}

// clearIndexes removes the children/roots index entry for a record.
func clearIndexes(txn *badger.Txn, rec *metadata.Record) error {
	if rec.ParentID == nil {
		return txn.Delete(rootKey(rec.ID))
	}
	return txn.Delete(childKey(*rec.ParentID, rec.ID))
}

// parentChanged reports whether two record versions have different parents.
func parentChanged(before, after *metadata.Record) bool {
	if (before.ParentID == nil) != (after.ParentID == nil) {
		return true
	}
	return before.ParentID != nil && *before.ParentID != *after.ParentID
}

// mapWriteError normalizes transaction failures from conditional writes.
//
// Stale version errors pass through untouched. A badger conflict abort means
// a concurrent transaction advanced the record first, so it is reported as
// Stale Version too. Everything else is a storage failure.
func mapWriteError(op string, id uuid.UUID, expectedVersion uint64, err error) error {
	var stale *metadata.StaleVersionError
	if errors.As(err, &stale) {
		return stale
	}
	if errors.Is(err, badger.ErrConflict) {
		return &metadata.StaleVersionError{ID: id, ExpectedVersion: expectedVersion}
	}
	return &metadata.StorageError{Op: op, Err: err}
}
