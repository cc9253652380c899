package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/lakshmanb4u/v7files/internal/logger"
	"github.com/lakshmanb4u/v7files/pkg/blob"
	blobFs "github.com/lakshmanb4u/v7files/pkg/blob/fs"
	blobMemory "github.com/lakshmanb4u/v7files/pkg/blob/memory"
	blobS3 "github.com/lakshmanb4u/v7files/pkg/blob/s3"
	"github.com/lakshmanb4u/v7files/pkg/metadata"
	"github.com/lakshmanb4u/v7files/pkg/metadata/badger"
	"github.com/lakshmanb4u/v7files/pkg/metadata/memory"
)

// CreateMetadataStore creates a metadata store based on configuration.
//
// This factory function uses the Type field to determine which store
// implementation to create, then decodes the type-specific configuration
// from the corresponding map and passes it to the store's constructor.
//
// Supported types:
//   - "memory": Uses pkg/metadata/memory (ephemeral)
//   - "badger": Uses pkg/metadata/badger (persistent)
func CreateMetadataStore(ctx context.Context, cfg *MetadataConfig) (metadata.Store, error) {
	switch cfg.Type {
	case "memory":
		return memory.NewMemoryMetadataStore(ctx)
	case "badger":
		return createBadgerMetadataStore(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q (supported: memory, badger)", cfg.Type)
	}
}

// createBadgerMetadataStore creates a BadgerDB-based persistent metadata store.
func createBadgerMetadataStore(ctx context.Context, options map[string]any) (metadata.Store, error) {
	type BadgerMetadataStoreOptions struct {
		Path       string `mapstructure:"path"`
		InMemory   bool   `mapstructure:"in_memory"`
		SyncWrites bool   `mapstructure:"sync_writes"`
	}

	var storeOpts BadgerMetadataStoreOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode badger metadata store options: %w", err)
	}

	if storeOpts.Path == "" && !storeOpts.InMemory {
		return nil, fmt.Errorf("badger metadata store: path is required unless in_memory is true")
	}

	store, err := badger.NewBadgerMetadataStore(ctx, badger.Options{
		Path:       storeOpts.Path,
		InMemory:   storeOpts.InMemory,
		SyncWrites: storeOpts.SyncWrites,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger metadata store: %w", err)
	}

	return store, nil
}

// CreateBlobStore creates a blob store based on configuration.
//
// Supported types:
//   - "memory": Uses pkg/blob/memory (ephemeral)
//   - "filesystem": Uses pkg/blob/fs (local filesystem storage)
//   - "s3": Uses pkg/blob/s3 (Amazon S3 or compatible storage)
func CreateBlobStore(ctx context.Context, cfg *BlobConfig) (blob.Store, error) {
	switch cfg.Type {
	case "memory":
		return blobMemory.NewMemoryBlobStore(ctx)
	case "filesystem":
		return createFilesystemBlobStore(ctx, cfg.Filesystem)
	case "s3":
		return createS3BlobStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob store type: %q (supported: memory, filesystem, s3)", cfg.Type)
	}
}

// createFilesystemBlobStore creates a filesystem-based blob store.
func createFilesystemBlobStore(ctx context.Context, options map[string]any) (blob.Store, error) {
	type FilesystemBlobStoreOptions struct {
		Path     string `mapstructure:"path"`
		ReadOnly bool   `mapstructure:"read_only"`
	}

	var storeOpts FilesystemBlobStoreOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem blob store options: %w", err)
	}

	if storeOpts.Path == "" {
		return nil, fmt.Errorf("filesystem blob store: path is required")
	}

	if storeOpts.ReadOnly {
		store, err := blobFs.NewReadOnlyFSBlobStore(ctx, storeOpts.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open read-only filesystem blob store: %w", err)
		}
		return store, nil
	}

	store, err := blobFs.NewFSBlobStore(ctx, storeOpts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem blob store: %w", err)
	}

	return store, nil
}

// createS3BlobStore creates an S3-based blob store.
func createS3BlobStore(ctx context.Context, options map[string]any) (blob.Store, error) {
	type S3BlobStoreOptions struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var storeOpts S3BlobStoreOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode S3 blob store options: %w", err)
	}

	if storeOpts.Bucket == "" {
		return nil, fmt.Errorf("S3 blob store: bucket is required")
	}
	if storeOpts.Region == "" {
		return nil, fmt.Errorf("S3 blob store: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(storeOpts.Region))

	// Custom endpoint support for MinIO, Localstack, etc.
	if storeOpts.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               storeOpts.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default credential chain.
	if storeOpts.AccessKeyID != "" && storeOpts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeOpts.AccessKeyID,
			storeOpts.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := storeOpts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for compatibility with MinIO/Localstack.
		if storeOpts.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	store, err := blobS3.NewS3BlobStore(ctx, blobS3.Config{
		Client:    client,
		Bucket:    storeOpts.Bucket,
		KeyPrefix: storeOpts.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 blob store: %w", err)
	}

	logger.Info("S3 blob store initialized: bucket=%s, region=%s, prefix=%s",
		storeOpts.Bucket, storeOpts.Region, storeOpts.KeyPrefix)

	return store, nil
}
