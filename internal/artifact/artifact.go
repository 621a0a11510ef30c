// Package artifact provides the canonical record for completed video
// outputs and the index that maps identifiers to them.
package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Kind identifies the processing operation that produced an artifact.
// Its value doubles as the "type" field in API responses and as the
// middle segment of the on-disk filename.
type Kind string

const (
	// KindGrayscale is a desaturated copy of an uploaded video.
	KindGrayscale Kind = "bw"
	// KindTrimmed is a stream-copied sub-range of an uploaded video.
	KindTrimmed Kind = "trimmed"
	// KindMerged is a concatenation of several uploaded videos.
	KindMerged Kind = "merged"
)

// IsValid returns true if the kind is one of the known values.
func (k Kind) IsValid() bool {
	return k == KindGrayscale || k == KindTrimmed || k == KindMerged
}

// Artifact is the canonical record for one completed output. Exactly one
// record exists per identifier; downloads resolve through it instead of
// probing filename conventions.
type Artifact struct {
	// ID is the identifier returned to clients by the processing operation.
	ID string `json:"id"`
	// Kind is the operation that produced the artifact.
	Kind Kind `json:"kind"`
	// Ext is the container extension without the leading dot, e.g. "mp4".
	Ext string `json:"ext"`
	// Path is the location of the artifact file in the output directory.
	Path string `json:"path"`
	// SizeBytes is the artifact file size.
	SizeBytes int64 `json:"size_bytes"`
	// DurationSeconds is the probed media duration; zero when probing failed.
	DurationSeconds float64 `json:"duration_seconds"`
	// S3URL is set when the artifact was mirrored to S3.
	S3URL string `json:"s3_url,omitempty"`
	// CreatedAt is when the artifact was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// New creates an artifact record for a freshly produced output file.
func New(id string, kind Kind, ext, path string) *Artifact {
	return &Artifact{
		ID:        id,
		Kind:      kind,
		Ext:       ext,
		Path:      path,
		CreatedAt: time.Now(),
	}
}

// Filename returns the conventional on-disk name, "{id}_{kind}.{ext}".
func (a *Artifact) Filename() string {
	return fmt.Sprintf("%s_%s.%s", a.ID, a.Kind, a.Ext)
}

// Clone creates a copy of the record for safe reads.
func (a *Artifact) Clone() *Artifact {
	c := *a
	return &c
}

// ParseFilename splits a conventional artifact filename back into its
// identifier, kind and extension. It reports ok=false for names that do
// not follow the "{id}_{kind}.{ext}" convention.
func ParseFilename(name string) (id string, kind Kind, ext string, ok bool) {
	dotExt := filepath.Ext(name)
	if dotExt == "" {
		return "", "", "", false
	}
	ext = strings.TrimPrefix(dotExt, ".")

	base := strings.TrimSuffix(name, dotExt)
	i := strings.LastIndex(base, "_")
	if i <= 0 {
		return "", "", "", false
	}

	id = base[:i]
	kind = Kind(base[i+1:])
	if !kind.IsValid() {
		return "", "", "", false
	}
	return id, kind, ext, true
}
