// Package fs implements a filesystem-backed blob store.
//
// Blobs are laid out in sharded directories keyed by the first byte of the
// digest, keeping directory fan-out bounded:
//
//	<root>/aa/aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d
//
// Writes go through a temporary file followed by an atomic rename, so a
// partially written blob is never visible under its digest.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/lakshmanb4u/v7files/pkg/blob"
)

// FSBlobStore implements blob.Store using the local filesystem.
//
// Thread Safety:
// Concurrent Puts of the same content race on the final rename, which is
// harmless: both temporary files hold identical bytes and rename is atomic.
type FSBlobStore struct {
	basePath string
	readOnly bool
}

// NewFSBlobStore creates a filesystem blob store rooted at basePath.
//
// The base directory is created with permissions 0755 if it does not exist.
func NewFSBlobStore(ctx context.Context, basePath string) (*FSBlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	return &FSBlobStore{basePath: basePath}, nil
}

// NewReadOnlyFSBlobStore opens an existing blob directory for reads only.
// Put and Delete fail with blob.ErrReadOnly.
func NewReadOnlyFSBlobStore(ctx context.Context, basePath string) (*FSBlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("blob path %s is not a directory", basePath)
	}

	return &FSBlobStore{basePath: basePath, readOnly: true}, nil
}

// blobPath returns the sharded path for a digest.
func (s *FSBlobStore) blobPath(digest blob.Digest) string {
	hexDigest := digest.Hex()
	return filepath.Join(s.basePath, hexDigest[:2], hexDigest)
}

// Put stores the given bytes under their digest.
//
// If a blob with the same digest already exists the write is skipped
// entirely, which keeps Put idempotent and deduplicating.
func (s *FSBlobStore) Put(ctx context.Context, data []byte) (blob.Digest, error) {
	digest := blob.DigestOf(data)

	if err := ctx.Err(); err != nil {
		return digest, err
	}
	if s.readOnly {
		return digest, fmt.Errorf("put blob %s: %w", digest, blob.ErrReadOnly)
	}

	path := s.blobPath(digest)
	if _, err := os.Stat(path); err == nil {
		// Already stored; content under a digest is immutable.
		return digest, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return digest, fmt.Errorf("failed to create shard directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return digest, fmt.Errorf("failed to create temporary blob file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return digest, fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return digest, fmt.Errorf("failed to close temporary blob file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return digest, fmt.Errorf("failed to publish blob: %w", err)
	}

	return digest, nil
}

// Open returns a reader over the blob with the given digest.
func (s *FSBlobStore) Open(ctx context.Context, digest blob.Digest) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(s.blobPath(digest))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %s: %w", digest, blob.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to open blob %s: %w", digest, err)
	}

	return file, nil
}

// Stat returns the size of the blob with the given digest.
func (s *FSBlobStore) Stat(ctx context.Context, digest blob.Digest) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := os.Stat(s.blobPath(digest))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("blob %s: %w", digest, blob.ErrBlobNotFound)
		}
		return 0, fmt.Errorf("failed to stat blob %s: %w", digest, err)
	}

	return info.Size(), nil
}

// List returns the digests of all stored blobs by walking the shard tree.
func (s *FSBlobStore) List(ctx context.Context) ([]blob.Digest, error) {
	var digests []blob.Digest

	err := filepath.WalkDir(s.basePath, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() {
			return nil
		}

		digest, parseErr := blob.ParseDigest(entry.Name())
		if parseErr != nil {
			// Temporary files and foreign entries are not blobs.
			return nil
		}

		digests = append(digests, digest)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	return digests, nil
}

// Delete removes the blob with the given digest. Missing blobs are ignored.
func (s *FSBlobStore) Delete(ctx context.Context, digest blob.Digest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.readOnly {
		return fmt.Errorf("delete blob %s: %w", digest, blob.ErrReadOnly)
	}

	if err := os.Remove(s.blobPath(digest)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", digest, err)
	}

	return nil
}
