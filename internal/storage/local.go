package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// Compile-time check that LocalStore implements Store.
var _ Store = (*LocalStore)(nil)

// LocalStore implements the Store interface using local disk.
// Staged uploads and completed artifacts live in two flat directories;
// it does not support S3 mirroring unless wrapped with S3Store.
type LocalStore struct {
	uploadDir string
	outputDir string
}

// NewLocalStore creates a new LocalStore instance.
// Empty directories default to "uploads" and "outputs" relative to the
// working directory. Both directories are created if they don't exist.
func NewLocalStore(uploadDir, outputDir string) (*LocalStore, error) {
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	if outputDir == "" {
		outputDir = "outputs"
	}

	if err := os.MkdirAll(uploadDir, 0750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return &LocalStore{uploadDir: uploadDir, outputDir: outputDir}, nil
}

// UploadDir returns the staging directory path.
func (s *LocalStore) UploadDir() string {
	return s.uploadDir
}

// OutputDir returns the artifact directory path.
func (s *LocalStore) OutputDir() string {
	return s.outputDir
}

// SaveUpload streams data into the staging directory under the given name
// and returns the file path. Names are derived from fresh identifiers by
// the caller, so collisions do not occur.
func (s *LocalStore) SaveUpload(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	path := filepath.Join(s.uploadDir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304 - name is built from a generated ID
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write staged file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close staged file: %w", err)
	}

	return path, nil
}

// OutputPath returns the path a file with the given name occupies in the
// output directory.
func (s *LocalStore) OutputPath(filename string) string {
	return filepath.Join(s.outputDir, filename)
}

// Open opens a stored file for reading.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open stored file: %w", err)
	}

	return f, nil
}

// Stat returns the size in bytes of a stored file.
func (s *LocalStore) Stat(ctx context.Context, path string) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat stored file: %w", err)
	}
	return info.Size(), nil
}

// ListOutputs returns the names of all files in the output directory.
func (s *LocalStore) ListOutputs(ctx context.Context) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return nil, fmt.Errorf("read output directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Cleanup removes the specified files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStore) Cleanup(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// MirrorToS3 is not supported by LocalStore and returns ErrS3NotConfigured.
func (s *LocalStore) MirrorToS3(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}
