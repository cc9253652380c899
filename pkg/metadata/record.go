// Package metadata defines the versioned file metadata model and the store
// boundary it is persisted through.
//
// Each stored file is a metadata record pointing at an immutable content blob
// by digest. Records change over time under optimistic concurrency control:
// every mutation is conditioned on the record's current version, and the
// compound (id, version) key doubles as the compare-and-swap token. No locks
// are taken anywhere in this package or its implementations.
package metadata

import (
	"time"

	"github.com/google/uuid"

	"github.com/lakshmanb4u/v7files/pkg/blob"
)

// InitialVersion is the version assigned to a freshly created record.
// Every successful conditional update advances the version by exactly one.
const InitialVersion uint64 = 1

// Permission names a kind of access an ACL can grant.
type Permission string

const (
	// PermissionRead grants read access to metadata and content
	PermissionRead Permission = "read"

	// PermissionWrite grants mutation access (rename, move, content, delete)
	PermissionWrite Permission = "write"

	// PermissionOpen grants the ability to open/traverse the node
	PermissionOpen Permission = "open"
)

// ACL maps a permission to an ordered list of opaque principal identifiers.
//
// A nil ACL on a record means "no ACL set at this node" and permission
// resolution continues at the parent. A present ACL that lacks an entry for
// some permission means "explicitly no one has this permission". The two
// cases are distinct and both observable through EffectiveACL resolution.
//
// No schema is imposed on principal identifiers.
type ACL map[Permission][]string

// Clone returns a deep copy of the ACL. Cloning nil returns nil.
func (a ACL) Clone() ACL {
	if a == nil {
		return nil
	}
	clone := make(ACL, len(a))
	for permission, principals := range a {
		list := make([]string, len(principals))
		copy(list, principals)
		clone[permission] = list
	}
	return clone
}

// Record is one version of one logical file's metadata.
//
// Records are plain data: all behavior (lazy content loading, ACL
// inheritance, version-gated mutation) lives in pkg/vfile on top of the
// Store interface.
//
// Invariants maintained by every Store implementation:
//   - Version is strictly increasing per ID; a mutation is accepted only if
//     it targets the currently stored version
//   - Length is set if and only if Digest is set
//   - The parent chain contains no cycles
type Record struct {
	// ID is the unique identifier, assigned at creation, immutable.
	ID uuid.UUID `json:"id"`

	// ParentID identifies the containing node; nil for root-level nodes.
	ParentID *uuid.UUID `json:"parent_id,omitempty"`

	// Version starts at InitialVersion and is advanced by every successful
	// conditional update. It is the optimistic concurrency token.
	Version uint64 `json:"version"`

	// Name is the display name. Unique only in combination with the parent,
	// and even that is not enforced by this core (see Store.Child).
	Name string `json:"name"`

	// ContentType optionally describes the content's media type.
	ContentType string `json:"content_type,omitempty"`

	// Digest identifies the associated content blob; nil means the record
	// has no content (e.g. a directory).
	Digest *blob.Digest `json:"digest,omitempty"`

	// Length is the content size in bytes, present exactly when Digest is.
	Length *int64 `json:"length,omitempty"`

	// ACL is the access control list set at this node, nil if none.
	ACL ACL `json:"acl,omitempty"`

	// CreatedAt is the record creation time.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the time of the last successful update.
	UpdatedAt time.Time `json:"updated_at"`
}

// HasContent reports whether the record references a content blob.
func (r *Record) HasContent() bool {
	return r.Digest != nil
}

// HexDigest returns the lowercase hex rendering of the content digest, or
// the empty string if the record has no content.
func (r *Record) HexDigest() string {
	if r.Digest == nil {
		return ""
	}
	return r.Digest.Hex()
}

// Clone returns a deep copy of the record.
//
// Stores hand out clones so callers can never mutate stored state through a
// returned record.
func (r *Record) Clone() *Record {
	clone := *r
	if r.ParentID != nil {
		parentID := *r.ParentID
		clone.ParentID = &parentID
	}
	if r.Digest != nil {
		digest := *r.Digest
		clone.Digest = &digest
	}
	if r.Length != nil {
		length := *r.Length
		clone.Length = &length
	}
	clone.ACL = r.ACL.Clone()
	return &clone
}

// Change describes the fields a conditional update may modify.
//
// Each field is a pointer; nil means "do not change this field". This allows
// atomic multi-field updates (e.g. a move changes parent and name together)
// without separate boolean flags.
//
// Content fields (Digest, Length, ContentType) travel together: a content
// update sets all three so the Length-iff-Digest invariant holds.
type Change struct {
	// Name is the new display name. nil = do not change.
	Name *string

	// ParentID is the new parent. nil = do not change.
	ParentID *uuid.UUID

	// ContentType is the new media type. nil = do not change.
	ContentType *string

	// Digest is the new content digest. nil = do not change.
	Digest *blob.Digest

	// Length is the new content length. nil = do not change.
	// Must be set exactly when Digest is set.
	Length *int64

	// ACL replaces the record's ACL. nil = do not change.
	// Pointing at a nil ACL clears the record's ACL entirely.
	ACL *ACL
}

// Apply copies the changed fields onto a record, advances the version by one
// and stamps UpdatedAt. Store implementations call this inside their
// conditional-update critical section after the version check has passed.
func (c Change) Apply(record *Record, now time.Time) {
	if c.Name != nil {
		record.Name = *c.Name
	}
	if c.ParentID != nil {
		parentID := *c.ParentID
		record.ParentID = &parentID
	}
	if c.ContentType != nil {
		record.ContentType = *c.ContentType
	}
	if c.Digest != nil {
		digest := *c.Digest
		record.Digest = &digest
	}
	if c.Length != nil {
		length := *c.Length
		record.Length = &length
	}
	if c.ACL != nil {
		record.ACL = (*c.ACL).Clone()
	}
	record.Version++
	record.UpdatedAt = now
}
