package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Write minimal config
	configContent := `
logging:
  level: "INFO"

blob:
  type: "memory"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify defaults were applied
	if cfg.Server.RootName != "root" {
		t.Errorf("Expected default root_name 'root', got %q", cfg.Server.RootName)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Gateway.ListenAddr != ":8080" {
		t.Errorf("Expected default listen_addr ':8080', got %q", cfg.Gateway.ListenAddr)
	}
	if cfg.GC.Interval != 24*time.Hour {
		t.Errorf("Expected default gc interval 24h, got %v", cfg.GC.Interval)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Use a path that does not exist so the user's real config is not read
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Metadata.Type != "memory" {
		t.Errorf("Expected default metadata type 'memory', got %q", cfg.Metadata.Type)
	}
	if cfg.Blob.Type != "memory" {
		t.Errorf("Expected default blob type 'memory', got %q", cfg.Blob.Type)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_NormalizesLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "debug"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Metadata.Type != "memory" {
		t.Errorf("Expected default metadata type 'memory', got %q", cfg.Metadata.Type)
	}
	if cfg.Blob.Type != "memory" {
		t.Errorf("Expected default blob type 'memory', got %q", cfg.Blob.Type)
	}
	if cfg.Blob.Filesystem["path"] != "/tmp/v7files-blobs" {
		t.Errorf("Expected default filesystem path, got %v", cfg.Blob.Filesystem["path"])
	}
	if cfg.GC.Enabled {
		t.Error("Expected gc disabled by default")
	}
	if cfg.GC.BatchSize != 1000 {
		t.Errorf("Expected default gc batch size 1000, got %d", cfg.GC.BatchSize)
	}
	if cfg.Gateway.MaxUploadBytes != 1<<30 {
		t.Errorf("Expected default max upload 1GB, got %d", cfg.Gateway.MaxUploadBytes)
	}

	// The default config must pass its own validation
	if err := Validate(cfg); err != nil {
		t.Errorf("Default config failed validation: %v", err)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	_ = os.Setenv("V7FILES_LOGGING_LEVEL", "ERROR")
	defer func() {
		_ = os.Unsetenv("V7FILES_LOGGING_LEVEL")
	}()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Environment variables override the config file
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
}
