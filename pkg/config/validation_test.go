package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "TRACE"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for invalid log level, got nil")
	}
}

func TestValidate_InvalidMetadataType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metadata.Type = "postgres"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for invalid metadata type, got nil")
	}
}

func TestValidate_InvalidBlobType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Blob.Type = "ftp"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for invalid blob type, got nil")
	}
}

func TestValidate_BadgerRequiresPath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metadata.Type = "badger"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for badger without path, got nil")
	}
	if !strings.Contains(err.Error(), "path") {
		t.Errorf("Expected path error, got: %v", err)
	}
}

func TestValidate_BadgerInMemoryNeedsNoPath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metadata.Type = "badger"
	cfg.Metadata.Badger["in_memory"] = true

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}
}

func TestValidate_S3RequiresBucketAndRegion(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Blob.Type = "s3"
	cfg.Blob.S3 = map[string]any{}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for s3 without bucket, got nil")
	}

	cfg.Blob.S3["bucket"] = "my-bucket"
	err = Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for s3 without region, got nil")
	}

	cfg.Blob.S3["region"] = "us-east-1"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}
}

func TestValidate_ZeroGatewayTimeouts(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Gateway.ReadTimeout = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for zero read timeout, got nil")
	}
}
