package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lakshmanb4u/v7files/internal/logger"
	"github.com/lakshmanb4u/v7files/pkg/blob"
	"github.com/lakshmanb4u/v7files/pkg/config"
	"github.com/lakshmanb4u/v7files/pkg/gateway"
	"github.com/lakshmanb4u/v7files/pkg/gc"
	"github.com/lakshmanb4u/v7files/pkg/metadata"
	"github.com/lakshmanb4u/v7files/pkg/vfile"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.SetLevel(cfg.Logging.Level)

	fmt.Println("v7files - versioned file store")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	meta, err := config.CreateMetadataStore(ctx, &cfg.Metadata)
	if err != nil {
		log.Fatalf("Failed to create metadata store: %v", err)
	}
	defer func() { _ = meta.Close() }()

	logger.Info("Metadata store initialized: type=%s", cfg.Metadata.Type)

	blobs, err := config.CreateBlobStore(ctx, &cfg.Blob)
	if err != nil {
		log.Fatalf("Failed to create blob store: %v", err)
	}

	logger.Info("Blob store initialized: type=%s", cfg.Blob.Type)

	root, err := ensureRoot(ctx, meta, blobs, cfg.Server.RootName)
	if err != nil {
		log.Fatalf("Failed to ensure root node: %v", err)
	}

	logger.Info("Root node ready: name=%s id=%s", root.Name(), root.ID())

	var collector *gc.Collector
	if cfg.GC.Enabled {
		collector = gc.NewCollector(meta, blobs, gc.Config{
			Interval:  cfg.GC.Interval,
			BatchSize: cfg.GC.BatchSize,
			DryRun:    cfg.GC.DryRun,
		})
		collector.Start()
		defer collector.Stop()
	}

	gw := gateway.New(root, gateway.Config{MaxUploadBytes: cfg.Gateway.MaxUploadBytes})
	server := &http.Server{
		Addr:         cfg.Gateway.ListenAddr,
		Handler:      gw.Handler(),
		ReadTimeout:  cfg.Gateway.ReadTimeout,
		WriteTimeout: cfg.Gateway.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP gateway listening on %s", cfg.Gateway.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}

// ensureRoot returns the named root node, creating it on first start.
func ensureRoot(ctx context.Context, meta metadata.Store, blobs blob.Store, name string) (*vfile.File, error) {
	roots, err := meta.Roots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roots: %w", err)
	}

	for _, rec := range roots {
		if rec.Name == name {
			return vfile.New(meta, blobs, rec), nil
		}
	}

	root, err := vfile.CreateRoot(ctx, meta, blobs, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create root: %w", err)
	}

	return root, nil
}
