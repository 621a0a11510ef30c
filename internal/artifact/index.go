package artifact

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an artifact cannot be found by ID.
var ErrNotFound = errors.New("artifact not found")

// Index defines the interface for artifact persistence.
// It acts as a port in the hexagonal architecture pattern.
type Index interface {
	// Save persists an artifact record.
	// If a record with the same ID already exists, it is replaced.
	Save(ctx context.Context, a *Artifact) error

	// FindByID retrieves an artifact by its identifier.
	// Returns ErrNotFound if no record exists.
	FindByID(ctx context.Context, id string) (*Artifact, error)

	// List returns all artifact records.
	List(ctx context.Context) ([]*Artifact, error)

	// Delete removes an artifact record.
	// Returns ErrNotFound if no record exists.
	Delete(ctx context.Context, id string) error
}
