// Package storage provides file storage for staged uploads and completed
// artifacts. It defines the Store interface (port) for hexagonal
// architecture and implementations for local disk and S3 mirroring.
package storage

import (
	"context"
	"io"
)

// Store defines the interface for staging uploads and housing artifacts.
// Implementations must handle staged input files during processing and
// optionally support mirroring completed artifacts to S3.
type Store interface {
	// SaveUpload streams an incoming upload into the staging directory
	// under the given name and returns the file path.
	SaveUpload(ctx context.Context, name string, data io.Reader) (path string, err error)

	// OutputPath returns the path a file with the given name occupies
	// in the output directory.
	OutputPath(filename string) string

	// Open opens a stored file for reading.
	// The caller is responsible for closing the returned ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Stat returns the size in bytes of a stored file.
	Stat(ctx context.Context, path string) (int64, error)

	// ListOutputs returns the names of all files in the output directory.
	ListOutputs(ctx context.Context) ([]string, error)

	// Cleanup removes the specified files.
	// It continues cleanup even if some files fail to delete.
	Cleanup(ctx context.Context, paths []string) error

	// MirrorToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	MirrorToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
