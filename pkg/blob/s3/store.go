// Package s3 implements an S3-backed blob store.
//
// Blobs are stored as objects keyed by the lowercase hex digest, optionally
// under a configurable prefix:
//
//	<keyPrefix><hex-digest>  (e.g. "v7files/blobs/aaf4c61d...")
//
// Content addressing makes deduplication natural: identical bytes map to the
// same object key, and Put checks for an existing object before uploading.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/lakshmanb4u/v7files/pkg/blob"
)

// S3BlobStore implements blob.Store using Amazon S3 or S3-compatible storage.
//
// S3 Characteristics:
//   - Object storage: blobs are written whole, never in place
//   - High durability; the backend performs its own integrity verification
//   - Supports custom endpoints for S3-compatible stores (MinIO, LocalStack)
//
// Thread Safety:
// Safe for concurrent use. Concurrent Puts of identical content write the
// same key with identical bytes, so last-write-wins is harmless.
type S3BlobStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// Config contains configuration for the S3 blob store.
type Config struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name. The bucket must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "v7files/blobs/" results in keys like "v7files/blobs/aaf4c6..."
	KeyPrefix string
}

// NewS3BlobStore creates an S3-backed blob store and verifies bucket access.
func NewS3BlobStore(ctx context.Context, cfg Config) (*S3BlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3BlobStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// objectKey returns the S3 object key for a digest.
func (s *S3BlobStore) objectKey(digest blob.Digest) string {
	return s.keyPrefix + digest.Hex()
}

// Put stores the given bytes under their digest.
//
// An existing object under the same key is never re-uploaded, which keeps
// Put idempotent and avoids a second physical copy.
func (s *S3BlobStore) Put(ctx context.Context, data []byte) (blob.Digest, error) {
	digest := blob.DigestOf(data)

	if err := ctx.Err(); err != nil {
		return digest, err
	}

	key := s.objectKey(digest)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		// Already stored; content under a digest is immutable.
		return digest, nil
	}
	if !isNotFound(err) {
		return digest, fmt.Errorf("failed to check for existing blob %s: %w", digest, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return digest, fmt.Errorf("failed to write blob %s to S3: %w", digest, err)
	}

	return digest, nil
}

// Open returns a reader over the blob with the given digest.
func (s *S3BlobStore) Open(ctx context.Context, digest blob.Digest) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(digest)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("blob %s: %w", digest, blob.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to read blob %s from S3: %w", digest, err)
	}

	return output.Body, nil
}

// Stat returns the size of the blob with the given digest.
func (s *S3BlobStore) Stat(ctx context.Context, digest blob.Digest) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	output, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(digest)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("blob %s: %w", digest, blob.ErrBlobNotFound)
		}
		return 0, fmt.Errorf("failed to stat blob %s: %w", digest, err)
	}

	return aws.ToInt64(output.ContentLength), nil
}

// List returns the digests of all stored blobs by paging through the bucket.
func (s *S3BlobStore) List(ctx context.Context) ([]blob.Digest, error) {
	var digests []blob.Digest

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}

		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			hexDigest := strings.TrimPrefix(key, s.keyPrefix)

			digest, parseErr := blob.ParseDigest(hexDigest)
			if parseErr != nil {
				// Foreign objects under the prefix are not blobs.
				continue
			}

			digests = append(digests, digest)
		}
	}

	return digests, nil
}

// Delete removes the blob with the given digest. Missing blobs are ignored.
func (s *S3BlobStore) Delete(ctx context.Context, digest blob.Digest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(digest)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", digest, err)
	}

	return nil
}

// isNotFound reports whether an S3 error indicates a missing object.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &noSuchKey)
}
