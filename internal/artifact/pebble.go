package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Compile-time check that PebbleIndex implements Index.
var _ Index = (*PebbleIndex)(nil)

// PebbleIndex is a persistent implementation of Index backed by an
// embedded pebble key/value store. Records are stored as JSON keyed by
// artifact ID and survive restarts.
type PebbleIndex struct {
	db *pebble.DB
}

// NewPebbleIndex opens (or creates) a pebble database at the given path.
func NewPebbleIndex(path string) (*PebbleIndex, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open artifact index at %s: %w", path, err)
	}
	return &PebbleIndex{db: db}, nil
}

// Save persists an artifact record, replacing any existing record with
// the same ID. Writes are synced so a crash cannot lose acknowledged
// artifacts.
func (i *PebbleIndex) Save(_ context.Context, a *Artifact) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal artifact %s: %w", a.ID, err)
	}
	if err := i.db.Set([]byte(a.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("save artifact %s: %w", a.ID, err)
	}
	return nil
}

// FindByID retrieves an artifact by its ID.
func (i *PebbleIndex) FindByID(_ context.Context, id string) (*Artifact, error) {
	data, closer, err := i.db.Get([]byte(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find artifact %s: %w", id, err)
	}
	defer func() { _ = closer.Close() }()

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal artifact %s: %w", id, err)
	}
	return &a, nil
}

// List returns all artifact records in the index.
func (i *PebbleIndex) List(_ context.Context) ([]*Artifact, error) {
	iter, err := i.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("iterate artifact index: %w", err)
	}
	defer func() { _ = iter.Close() }()

	var result []*Artifact
	for iter.First(); iter.Valid(); iter.Next() {
		var a Artifact
		if err := json.Unmarshal(iter.Value(), &a); err != nil {
			return nil, fmt.Errorf("unmarshal artifact %s: %w", iter.Key(), err)
		}
		result = append(result, &a)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate artifact index: %w", err)
	}
	return result, nil
}

// Delete removes an artifact record from the index.
func (i *PebbleIndex) Delete(_ context.Context, id string) error {
	// Pebble deletes are blind; check existence first so callers can
	// distinguish unknown identifiers.
	_, closer, err := i.db.Get([]byte(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find artifact %s: %w", id, err)
	}
	_ = closer.Close()

	if err := i.db.Delete([]byte(id), pebble.Sync); err != nil {
		return fmt.Errorf("delete artifact %s: %w", id, err)
	}
	return nil
}

// Close releases the underlying database.
func (i *PebbleIndex) Close() error {
	return i.db.Close()
}
