// Package vfile is the versioned file node layered over the metadata and
// blob store collaborators.
//
// A File is an immutable in-memory snapshot of one version of one logical
// file. Reads come from the snapshot (content lazily, through a cached blob
// handle); mutations go through the metadata store's conditional update,
// the version gate, and refresh the snapshot on success. A mutation that
// loses a version race returns *metadata.StaleVersionError and leaves both
// the stored record and the snapshot untouched; the caller re-fetches and
// decides.
//
// File values are not meant to be shared across concurrent mutators: each
// mutator should operate on a freshly fetched node or be prepared to receive
// a stale-version failure.
package vfile

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/lakshmanb4u/v7files/pkg/blob"
	"github.com/lakshmanb4u/v7files/pkg/metadata"
)

// File is one version of one logical file, bound to its collaborators.
type File struct {
	rec    *metadata.Record
	meta   metadata.Store
	blobs  blob.Store
	parent *File // non-owning, cached on first Parent() call
	ref    *contentRef
}

// New wraps an already-fetched record.
func New(meta metadata.Store, blobs blob.Store, rec *metadata.Record) *File {
	return &File{
		rec:   rec,
		meta:  meta,
		blobs: blobs,
		ref:   newContentRef(blobs, rec.Digest),
	}
}

// Load fetches the current version of the file with the given id.
func Load(ctx context.Context, meta metadata.Store, blobs blob.Store, id uuid.UUID) (*File, error) {
	rec, err := meta.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return New(meta, blobs, rec), nil
}

// CreateRoot creates a parentless node with no content.
func CreateRoot(ctx context.Context, meta metadata.Store, blobs blob.Store, name string) (*File, error) {
	rec, err := meta.Create(ctx, &metadata.Record{Name: name})
	if err != nil {
		return nil, err
	}
	return New(meta, blobs, rec), nil
}

// ============================================================================
// Accessors
// ============================================================================

// ID returns the file's unique identifier.
func (f *File) ID() uuid.UUID { return f.rec.ID }

// Version returns the metadata version this snapshot represents.
func (f *File) Version() uint64 { return f.rec.Version }

// Name returns the display name.
func (f *File) Name() string { return f.rec.Name }

// ContentType returns the content media type, or "" if unset.
func (f *File) ContentType() string { return f.rec.ContentType }

// ParentID returns the containing node's id, preferring the in-memory parent
// reference when one is held; nil means the node has no parent.
func (f *File) ParentID() *uuid.UUID {
	if f.parent != nil {
		id := f.parent.ID()
		return &id
	}
	return f.rec.ParentID
}

// HasContent reports whether the file references a content blob.
func (f *File) HasContent() bool { return f.rec.HasContent() }

// Digest returns the content digest, or nil if the file has no content.
func (f *File) Digest() *blob.Digest { return f.rec.Digest }

// HexDigest returns the lowercase hex digest, or "" if no content.
func (f *File) HexDigest() string { return f.rec.HexDigest() }

// Length returns the content length in bytes, or nil if no content.
func (f *File) Length() *int64 { return f.rec.Length }

// CreatedAt returns the record creation time.
func (f *File) CreatedAt() time.Time { return f.rec.CreatedAt }

// UpdatedAt returns the time of the last successful update.
func (f *File) UpdatedAt() time.Time { return f.rec.UpdatedAt }

// Record returns a copy of the underlying metadata record.
func (f *File) Record() *metadata.Record { return f.rec.Clone() }

// Parent returns the containing node, fetching it on first use and caching
// the reference for the node's lifetime. Returns (nil, nil) for parentless
// nodes.
func (f *File) Parent(ctx context.Context) (*File, error) {
	if f.parent != nil {
		return f.parent, nil
	}
	if f.rec.ParentID == nil {
		return nil, nil
	}

	parent, err := Load(ctx, f.meta, f.blobs, *f.rec.ParentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load parent of %s: %w", f.rec.ID, err)
	}

	f.parent = parent
	return parent, nil
}

// ============================================================================
// Content
// ============================================================================

// Content returns a reader over the file's content blob.
//
// The blob is fetched from the backend on first access and cached for this
// node's in-memory lifetime; each call returns a fresh reader over the
// cached bytes. Returns ErrNoContent if the file has no digest, and
// ErrContentMissing if the digest has no matching blob (a broken reference).
func (f *File) Content(ctx context.Context) (io.ReadCloser, error) {
	return f.ref.open(ctx)
}

// ============================================================================
// ACL resolution
// ============================================================================

// ACL returns the list set for the permission at this node only:
// nil if no ACL is set here at all, an empty non-nil list if an ACL is set
// but lacks this permission.
func (f *File) ACL(permission metadata.Permission) []string {
	if f.rec.ACL == nil {
		return nil
	}
	if list, ok := f.rec.ACL[permission]; ok {
		return append([]string(nil), list...)
	}
	return []string{}
}

// EffectiveACL resolves the permission against the nearest ancestor-or-self
// with an explicit ACL:
//
//  1. If this node has an ACL: the permission's list if present, else an
//     explicit empty list (permission defined but granted to no one).
//  2. Otherwise, if the node has a parent: recurse on the parent. Parents
//     not yet in memory are fetched through the metadata store.
//  3. Otherwise: nil, meaning no ACL anywhere on the chain.
//
// This is a pure read over the ancestor chain; it performs no writes.
func (f *File) EffectiveACL(ctx context.Context, permission metadata.Permission) ([]string, error) {
	if f.rec.ACL != nil {
		return f.ACL(permission), nil
	}

	parent, err := f.Parent(ctx)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, nil
	}

	return parent.EffectiveACL(ctx, permission)
}

// ============================================================================
// Version-gated mutations
// ============================================================================

// Every mutation below is a remote write conditioned on this snapshot's
// version. None are safe to retry blindly: on *metadata.StaleVersionError
// the caller must re-fetch the node and reapply the change deliberately.

// Rename updates the display name.
func (f *File) Rename(ctx context.Context, newName string) error {
	return f.update(ctx, metadata.Change{Name: &newName})
}

// MoveTo changes the parent and the name together, persisted as a single
// version-gated update. Atomicity covers this node only, not the old or
// new parent's children listing, which have no record-level state here.
func (f *File) MoveTo(ctx context.Context, newParentID uuid.UUID, newName string) error {
	err := f.update(ctx, metadata.Change{
		ParentID: &newParentID,
		Name:     &newName,
	})
	if err != nil {
		return err
	}

	// The cached parent reference belongs to the old location.
	f.parent = nil
	return nil
}

// SetContent stores the bytes into the blob backend and then persists the
// resulting digest, length and content type through the version gate.
//
// If the metadata update loses the version race the blob remains stored; it
// is unreferenced and left to garbage collection.
func (f *File) SetContent(ctx context.Context, data []byte, contentType string) error {
	digest, err := f.blobs.Put(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to store content: %w", err)
	}

	length := int64(len(data))
	return f.update(ctx, metadata.Change{
		ContentType: &contentType,
		Digest:      &digest,
		Length:      &length,
	})
}

// SetACL replaces the ACL set at this node. Passing nil clears it, so the
// node inherits from its ancestors again.
func (f *File) SetACL(ctx context.Context, acl metadata.ACL) error {
	return f.update(ctx, metadata.Change{ACL: &acl})
}

// Delete removes this node's current version through the version gate.
// The content blob, if any, is left to garbage collection.
func (f *File) Delete(ctx context.Context) error {
	return f.meta.ConditionalRemove(ctx, f.rec.ID, f.rec.Version)
}

// update runs a conditional update against this snapshot's version and, on
// success, advances the snapshot to the persisted record.
func (f *File) update(ctx context.Context, change metadata.Change) error {
	updated, err := f.meta.ConditionalUpdate(ctx, f.rec.ID, f.rec.Version, change)
	if err != nil {
		return err
	}

	f.rec = updated
	if change.Digest != nil {
		// New content invalidates the cached blob handle.
		f.ref = newContentRef(f.blobs, updated.Digest)
	}
	return nil
}

// ============================================================================
// Tree navigation
// ============================================================================

// CreateChild allocates a brand-new node under this one, with content and
// metadata set atomically by the backing store, and returns a handle to it.
//
// data may be nil for a content-less child (a directory).
func (f *File) CreateChild(ctx context.Context, data []byte, name string, contentType string) (*File, error) {
	parentID := f.rec.ID
	rec := &metadata.Record{
		ParentID:    &parentID,
		Name:        name,
		ContentType: contentType,
	}

	if data != nil {
		digest, err := f.blobs.Put(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("failed to store content for child %q: %w", name, err)
		}
		length := int64(len(data))
		rec.Digest = &digest
		rec.Length = &length
	}

	created, err := f.meta.Create(ctx, rec)
	if err != nil {
		return nil, err
	}

	child := New(f.meta, f.blobs, created)
	child.parent = f
	return child, nil
}

// Children returns this node's children as file handles. Each child holds
// an in-memory reference to this node as its parent.
func (f *File) Children(ctx context.Context) ([]*File, error) {
	records, err := f.meta.Children(ctx, f.rec.ID)
	if err != nil {
		return nil, err
	}

	children := make([]*File, 0, len(records))
	for _, rec := range records {
		child := New(f.meta, f.blobs, rec)
		child.parent = f
		children = append(children, child)
	}

	return children, nil
}

// Child returns the child with exactly the given name, or
// metadata.ErrNotFound if none exists. With duplicate sibling names the
// first match in store order wins; callers must not rely on which.
func (f *File) Child(ctx context.Context, name string) (*File, error) {
	rec, err := f.meta.Child(ctx, f.rec.ID, name)
	if err != nil {
		return nil, err
	}

	child := New(f.meta, f.blobs, rec)
	child.parent = f
	return child, nil
}
