// Package bootstrap provides dependency initialization for the video editing API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Darshan-git-hub/Edit-AI-dabba-version/internal/artifact"
	"github.com/Darshan-git-hub/Edit-AI-dabba-version/internal/config"
	"github.com/Darshan-git-hub/Edit-AI-dabba-version/internal/media"
	"github.com/Darshan-git-hub/Edit-AI-dabba-version/internal/storage"
	"github.com/Darshan-git-hub/Edit-AI-dabba-version/internal/video"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	VideoService *video.Service

	closers []func() error
}

// Close releases resources held by the dependency graph, most notably
// the on-disk artifact index.
func (d *Dependencies) Close() error {
	var firstErr error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize the artifact index
	index, closeIndex, err := initIndex(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize media processor
	processor := media.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath, cfg.FFmpegTimeout())

	svc := video.NewService(store, index, processor, logger)

	// Align the index with whatever is already in the output directory,
	// so artifacts survive index loss and records do not outlive files.
	if _, _, err := svc.Reconcile(context.Background()); err != nil {
		if closeIndex != nil {
			_ = closeIndex()
		}
		return nil, fmt.Errorf("reconcile artifact index: %w", err)
	}

	deps := &Dependencies{
		VideoService: svc,
	}
	if closeIndex != nil {
		deps.closers = append(deps.closers, closeIndex)
	}
	return deps, nil
}

// initStore creates the appropriate storage backend based on configuration.
func initStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Store(cfg.UploadDir, cfg.OutputDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 mirroring configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStore(cfg.UploadDir, cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("upload_dir", cfg.UploadDir),
		slog.String("output_dir", cfg.OutputDir),
	)
	return localStore, nil
}

// initIndex creates the artifact index: persistent when an index
// directory is configured, in-memory otherwise.
func initIndex(cfg *config.Config, logger *slog.Logger) (artifact.Index, func() error, error) {
	if cfg.IndexDir != "" {
		idx, err := artifact.NewPebbleIndex(cfg.IndexDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open artifact index: %w", err)
		}
		logger.Info("persistent artifact index opened",
			slog.String("index_dir", cfg.IndexDir),
		)
		return idx, idx.Close, nil
	}

	logger.Info("using in-memory artifact index; records will not survive restarts")
	return artifact.NewMemoryIndex(), nil, nil
}
