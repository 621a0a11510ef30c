// Package server provides the HTTP server for the video editing API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// TrimRequest carries the parsed numeric bounds of a trim request.
type TrimRequest struct {
	// Start is the cut-in point in seconds.
	Start float64 `validate:"gte=0"`
	// End is the cut-out point in seconds; it must lie after Start.
	End float64 `validate:"gtfield=Start"`
}

// MergeRequest carries the declared input count of a merge request.
type MergeRequest struct {
	// VideoCount is the number of video{i} file fields in the form.
	VideoCount int `validate:"required,min=2"`
}

// ProcessResponse is the HTTP response after a successful editing operation.
type ProcessResponse struct {
	// Success is always true in this response shape.
	Success bool `json:"success"`
	// FileID identifies the produced artifact for download.
	FileID string `json:"file_id"`
	// Message is a human-readable confirmation.
	Message string `json:"message"`
	// Type is the artifact kind for trim and merge responses.
	Type string `json:"type,omitempty"`
}

// ArtifactResponse is the HTTP response for artifact metadata.
type ArtifactResponse struct {
	// FileID identifies the artifact.
	FileID string `json:"file_id"`
	// Type is the operation that produced the artifact.
	Type string `json:"type"`
	// Filename is the artifact's name in the output directory.
	Filename string `json:"filename"`
	// SizeBytes is the artifact's size on disk.
	SizeBytes int64 `json:"size_bytes"`
	// DurationSeconds is the probed media duration, zero when unknown.
	DurationSeconds float64 `json:"duration_seconds"`
	// S3URL is the mirrored object URL when mirroring is configured.
	S3URL string `json:"s3_url,omitempty"`
	// CreatedAt is when the artifact was produced.
	CreatedAt time.Time `json:"created_at"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
