package badger

import (
	"github.com/google/uuid"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so we use prefixed keys to organize data
// types into logical namespaces. This design:
//   - Prevents key collisions between data types
//   - Enables efficient range scans (all children of a node)
//   - Makes the database structure self-documenting
//
// Key Namespace Prefixes:
//
// Data Type             Prefix   Key Format                   Value Type
// =========================================================================
// Record Data           "f:"     f:<uuid>                     Record (JSON)
// Children Index        "c:"     c:<parentUUID>:<childUUID>   empty
// Roots Index           "r:"     r:<uuid>                     empty
//
// Key Design Rationale:
//
// 1. Record Data (f:)
//    - One entry per record, keyed by the record's UUID
//    - Point lookup by UUID: O(1)
//    - The record JSON carries the version; the conditional update reads it
//      inside the same transaction that writes, so the (id, version) check
//      and the mutation are atomic
//
// 2. Children Index (c:)
//    - Denormalized: one entry per child
//    - List children: range scan over "c:<parentUUID>:"
//    - Keyed by child UUID rather than child name, so duplicate sibling
//      names never collide in the index; name matching loads the record
//    - Maintained inside the same transaction as the record write
//
// 3. Roots Index (r:)
//    - One entry per parentless record
//    - List roots: range scan over "r:"

const (
	// prefixRecord is the key prefix for record data
	prefixRecord = "f:"

	// prefixChildren is the key prefix for the per-parent children index
	prefixChildren = "c:"

	// prefixRoots is the key prefix for the parentless records index
	prefixRoots = "r:"
)

// recordKey returns the key holding a record's JSON.
func recordKey(id uuid.UUID) []byte {
	return []byte(prefixRecord + id.String())
}

// childrenPrefix returns the range-scan prefix for a parent's children.
func childrenPrefix(parentID uuid.UUID) []byte {
	return []byte(prefixChildren + parentID.String() + ":")
}

// childKey returns the children-index key for one parent/child pair.
func childKey(parentID, childID uuid.UUID) []byte {
	return []byte(prefixChildren + parentID.String() + ":" + childID.String())
}

// rootKey returns the roots-index key for a parentless record.
func rootKey(id uuid.UUID) []byte {
	return []byte(prefixRoots + id.String())
}

// rootsPrefix returns the range-scan prefix for all roots.
func rootsPrefix() []byte {
	return []byte(prefixRoots)
}

// childIDFromKey extracts the child UUID from a children-index key.
func childIDFromKey(key []byte, prefix []byte) (uuid.UUID, error) {
	return uuid.Parse(string(key[len(prefix):]))
}

// rootIDFromKey extracts the record UUID from a roots-index key.
func rootIDFromKey(key []byte) (uuid.UUID, error) {
	return uuid.Parse(string(key[len(prefixRoots):]))
}
