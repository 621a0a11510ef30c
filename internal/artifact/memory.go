package artifact

import (
	"context"
	"sync"
)

// Compile-time check that MemoryIndex implements Index.
var _ Index = (*MemoryIndex)(nil)

// MemoryIndex is an in-memory implementation of Index.
// It uses a map with RWMutex for thread-safe access. Records do not
// survive restarts; configure a pebble index for persistence.
type MemoryIndex struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
}

// NewMemoryIndex creates a new in-memory artifact index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		artifacts: make(map[string]*Artifact),
	}
}

// Save persists an artifact record to the in-memory index.
// Creates a clone to avoid external mutations.
func (i *MemoryIndex) Save(_ context.Context, a *Artifact) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.artifacts[a.ID] = a.Clone()
	return nil
}

// FindByID retrieves an artifact by its ID.
// Returns a clone to prevent external mutations.
func (i *MemoryIndex) FindByID(_ context.Context, id string) (*Artifact, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	a, ok := i.artifacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

// List returns all artifacts in the index.
// Returns clones to prevent external mutations.
func (i *MemoryIndex) List(_ context.Context) ([]*Artifact, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	result := make([]*Artifact, 0, len(i.artifacts))
	for _, a := range i.artifacts {
		result = append(result, a.Clone())
	}
	return result, nil
}

// Delete removes an artifact record from the index.
func (i *MemoryIndex) Delete(_ context.Context, id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.artifacts[id]; !ok {
		return ErrNotFound
	}
	delete(i.artifacts, id)
	return nil
}
