package vfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/lakshmanb4u/v7files/pkg/blob"
)

// ErrNoContent indicates the file has no content blob at all (for example a
// directory). It is a normal outcome, distinct from ErrContentMissing.
var ErrNoContent = errors.New("file has no content")

// ErrContentMissing indicates the file references a digest with no matching
// blob in the backend. This is a broken reference (backend-level data loss
// or corruption) and is surfaced, never silently defaulted.
var ErrContentMissing = errors.New("content blob missing from backend")

// contentRef is the lazy, cached handle to a file's content blob.
//
// The reference moves through three explicit states:
//   - not yet loaded: nothing fetched, digest may or may not be set
//   - absent: no digest, the file has no content
//   - loaded: blob bytes fetched once and cached for the node's in-memory
//     lifetime (never persisted across node instances)
type contentRef struct {
	store  blob.Store
	digest *blob.Digest

	mu     sync.Mutex
	loaded bool
	data   []byte
}

// newContentRef builds an unloaded reference for the given digest, which may
// be nil for content-less files.
func newContentRef(store blob.Store, digest *blob.Digest) *contentRef {
	return &contentRef{store: store, digest: digest}
}

// open returns a fresh reader over the blob, fetching it from the backend on
// first access.
func (c *contentRef) open(ctx context.Context) (io.ReadCloser, error) {
	if c.digest == nil {
		return nil, ErrNoContent
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		reader, err := c.store.Open(ctx, *c.digest)
		if err != nil {
			if errors.Is(err, blob.ErrBlobNotFound) {
				return nil, fmt.Errorf("digest %s: %w", c.digest, ErrContentMissing)
			}
			return nil, err
		}
		defer reader.Close()

		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read blob %s: %w", c.digest, err)
		}

		c.data = data
		c.loaded = true
	}

	return io.NopCloser(bytes.NewReader(c.data)), nil
}
