package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/Darshan-git-hub/Edit-AI-dabba-version/internal/artifact"
	"github.com/Darshan-git-hub/Edit-AI-dabba-version/internal/media"
	"github.com/Darshan-git-hub/Edit-AI-dabba-version/internal/video"
)

// multipartMemory is the in-memory buffer size for multipart parsing;
// larger uploads spill to temporary files.
const multipartMemory = 32 << 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service        *video.Service
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes caps the request body size for the editing
// endpoints. Zero disables the cap.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		h.maxUploadBytes = n
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *video.Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// Upload handles POST /upload requests: grayscale conversion, optionally
// restricted to a sub-range when both startTime and endTime are given.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	file, header, ok := h.formFile(w, r, "video", "no video file provided")
	if !ok {
		return
	}
	defer func() { _ = file.Close() }()

	span := optionalSpan(r)

	art, err := h.service.Grayscale(r.Context(), video.Upload{Filename: header.Filename, Data: file}, span)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ProcessResponse{
		Success: true,
		FileID:  art.ID,
		Message: "Video converted successfully",
	})
}

// Trim handles POST /trim requests. Both bounds are required.
func (h *Handlers) Trim(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	file, header, ok := h.formFile(w, r, "video", "no video file provided")
	if !ok {
		return
	}
	defer func() { _ = file.Close() }()

	startRaw := r.FormValue("startTime")
	endRaw := r.FormValue("endTime")
	if startRaw == "" || endRaw == "" {
		writeError(w, http.StatusBadRequest, "start time and end time are required", "VALIDATION_ERROR")
		return
	}

	start, errStart := strconv.ParseFloat(startRaw, 64)
	end, errEnd := strconv.ParseFloat(endRaw, 64)
	if errStart != nil || errEnd != nil {
		writeError(w, http.StatusBadRequest, "invalid time values", "VALIDATION_ERROR")
		return
	}

	// Validate request
	req := TrimRequest{Start: start, End: end}
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("trim validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	art, err := h.service.Trim(r.Context(), video.Upload{Filename: header.Filename, Data: file}, media.TimeSpan{Start: start, End: end})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ProcessResponse{
		Success: true,
		FileID:  art.ID,
		Message: "Video trimmed successfully",
		Type:    string(art.Kind),
	})
}

// Merge handles POST /merge requests. The form declares videoCount and
// carries that many video{i} file fields.
func (h *Handlers) Merge(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	countRaw := r.FormValue("videoCount")
	count := 0
	if countRaw != "" {
		n, err := strconv.Atoi(countRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid video count", "VALIDATION_ERROR")
			return
		}
		count = n
	}

	// Validate request
	req := MergeRequest{VideoCount: count}
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("merge validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "at least 2 videos are required for merging", "VALIDATION_ERROR")
		return
	}

	// The declared count drives the loop but never sizes the allocation;
	// capacity comes from the file parts actually parsed, so an inflated
	// videoCount fails at the first missing field instead of reserving
	// memory for the claim.
	uploads := make([]video.Upload, 0, len(r.MultipartForm.File))
	for i := 0; i < count; i++ {
		field := fmt.Sprintf("video%d", i)
		file, header, ok := h.formFile(w, r, field, fmt.Sprintf("video file %s is missing", field))
		if !ok {
			return
		}
		defer func() { _ = file.Close() }()
		uploads = append(uploads, video.Upload{Filename: header.Filename, Data: file})
	}

	art, err := h.service.Merge(r.Context(), uploads)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ProcessResponse{
		Success: true,
		FileID:  art.ID,
		Message: fmt.Sprintf("Successfully merged %d videos", count),
		Type:    string(art.Kind),
	})
}

// Download handles GET /download/{id} requests, returning the artifact
// as an attachment.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "file ID is required", "VALIDATION_ERROR")
		return
	}

	art, err := h.service.Resolve(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename()))
	http.ServeFile(w, r, art.Path)
}

// GetArtifact handles GET /artifacts/{id} requests.
func (h *Handlers) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "file ID is required", "VALIDATION_ERROR")
		return
	}

	art, err := h.service.Resolve(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ArtifactResponse{
		FileID:          art.ID,
		Type:            string(art.Kind),
		Filename:        art.Filename(),
		SizeBytes:       art.SizeBytes,
		DurationSeconds: art.DurationSeconds,
		S3URL:           art.S3URL,
		CreatedAt:       art.CreatedAt,
	})
}

// DeleteArtifact handles DELETE /artifacts/{id} requests.
func (h *Handlers) DeleteArtifact(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "file ID is required", "VALIDATION_ERROR")
		return
	}

	if err := h.service.Purge(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("artifact deleted", slog.String("file_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// parseForm applies the upload size cap and parses the multipart form,
// writing the error response itself on failure.
func (h *Handlers) parseForm(w http.ResponseWriter, r *http.Request) bool {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.logger.Warn("request body too large",
				slog.String("path", r.URL.Path),
				slog.Int64("limit", maxErr.Limit),
			)
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "VALIDATION_ERROR")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form", "VALIDATION_ERROR")
		return false
	}
	return true
}

// formFile fetches one uploaded file field, writing the 400 response
// itself when the field is missing. A part without a filename is parsed
// as a form value, so it surfaces here as a missing file too.
func (h *Handlers) formFile(w http.ResponseWriter, r *http.Request, field, missingMsg string) (multipart.File, *multipart.FileHeader, bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		writeError(w, http.StatusBadRequest, missingMsg, "VALIDATION_ERROR")
		return nil, nil, false
	}
	return file, header, true
}

// optionalSpan reads the startTime/endTime form fields. The sub-range
// only applies when both are present and numeric; a lone or unparseable
// bound means the whole video is converted.
func optionalSpan(r *http.Request) *media.TimeSpan {
	startRaw := r.FormValue("startTime")
	endRaw := r.FormValue("endTime")
	if startRaw == "" || endRaw == "" {
		return nil
	}

	start, errStart := strconv.ParseFloat(startRaw, 64)
	end, errEnd := strconv.ParseFloat(endRaw, 64)
	if errStart != nil || errEnd != nil {
		return nil
	}
	return &media.TimeSpan{Start: start, End: end}
}

// writeServiceError maps a service error onto the response taxonomy:
// validation failures, missing artifacts, tool failures and everything
// else as distinct codes.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ffErr *media.FFmpegError
	switch {
	case errors.Is(err, video.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, "invalid video file format", "VALIDATION_ERROR")
	case errors.Is(err, video.ErrTooFewVideos):
		writeError(w, http.StatusBadRequest, "at least 2 videos are required for merging", "VALIDATION_ERROR")
	case errors.Is(err, media.ErrInvalidTimeSpan):
		writeError(w, http.StatusBadRequest, "end time must be greater than start time", "VALIDATION_ERROR")
	case errors.Is(err, artifact.ErrNotFound):
		writeError(w, http.StatusNotFound, "file not found", "ARTIFACT_NOT_FOUND")
	case errors.As(err, &ffErr):
		h.logger.Error("processing failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		msg := ffErr.Stderr
		if msg == "" {
			msg = ffErr.Error()
		}
		writeError(w, http.StatusInternalServerError, msg, "FFMPEG_FAILED")
	default:
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
