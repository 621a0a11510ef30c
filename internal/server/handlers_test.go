package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Darshan-git-hub/Edit-AI-dabba-version/internal/artifact"
	"github.com/Darshan-git-hub/Edit-AI-dabba-version/internal/media"
	"github.com/Darshan-git-hub/Edit-AI-dabba-version/internal/storage"
	"github.com/Darshan-git-hub/Edit-AI-dabba-version/internal/video"
)

// mockProcessor implements media.Processor for testing.
type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Grayscale(ctx context.Context, input, output string, span *media.TimeSpan) error {
	args := m.Called(ctx, input, output, span)
	return args.Error(0)
}

func (m *mockProcessor) Trim(ctx context.Context, input, output string, span media.TimeSpan) error {
	args := m.Called(ctx, input, output, span)
	return args.Error(0)
}

func (m *mockProcessor) Merge(ctx context.Context, inputs []string, output string) error {
	args := m.Called(ctx, inputs, output)
	return args.Error(0)
}

func (m *mockProcessor) Duration(ctx context.Context, path string) (float64, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(float64), args.Error(1)
}

func newTestHandlers(t *testing.T, opts ...HandlerOption) (*Handlers, *mockProcessor, *storage.LocalStore, *artifact.MemoryIndex) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStore(filepath.Join(dir, "uploads"), filepath.Join(dir, "outputs"))
	require.NoError(t, err)

	index := artifact.NewMemoryIndex()
	proc := &mockProcessor{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	svc := video.NewService(store, index, proc, logger)
	return NewHandlers(svc, logger, opts...), proc, store, index
}

// filePart describes one file field of a multipart request.
type filePart struct {
	field    string
	filename string
	content  string
}

// multipartBody builds a multipart form body with the given file parts
// and value fields.
func multipartBody(t *testing.T, files []filePart, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postMultipart(t *testing.T, handler http.HandlerFunc, target string, files []filePart, values map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, files, values)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

// writeOutput is a mock side effect that creates the output file the
// processor would have produced.
func writeOutput(t *testing.T) func(mock.Arguments) {
	t.Helper()
	return func(args mock.Arguments) {
		require.NoError(t, os.WriteFile(args.String(2), []byte("processed video"), 0o600))
	}
}

// seedArtifact places a finished artifact in the store and index, as if
// an earlier request had produced it.
func seedArtifact(t *testing.T, store *storage.LocalStore, index *artifact.MemoryIndex, id string, kind artifact.Kind, ext, content string) *artifact.Artifact {
	t.Helper()
	art := artifact.New(id, kind, ext, "")
	art.Path = store.OutputPath(art.Filename())
	art.SizeBytes = int64(len(content))
	require.NoError(t, os.WriteFile(art.Path, []byte(content), 0o600))
	require.NoError(t, index.Save(context.Background(), art))
	return art
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "healthy", resp.Status)
}

func TestUpload_Success(t *testing.T) {
	h, proc, _, index := newTestHandlers(t)

	proc.On("Grayscale", mock.Anything, mock.Anything, mock.Anything, (*media.TimeSpan)(nil)).
		Run(writeOutput(t)).
		Return(nil)
	proc.On("Duration", mock.Anything, mock.Anything).Return(4.2, nil)

	rec := postMultipart(t, h.Upload, "/upload",
		[]filePart{{field: "video", filename: "clip.mp4", content: "raw video bytes"}}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ProcessResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.FileID)
	assert.Equal(t, "Video converted successfully", resp.Message)
	assert.Empty(t, resp.Type)

	art, err := index.FindByID(context.Background(), resp.FileID)
	require.NoError(t, err)
	assert.Equal(t, artifact.KindGrayscale, art.Kind)
	proc.AssertExpectations(t)
}

func TestUpload_WithTimeRange(t *testing.T) {
	h, proc, _, _ := newTestHandlers(t)

	proc.On("Grayscale", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(span *media.TimeSpan) bool {
		return span != nil && span.Start == 2 && span.End == 5
	})).Run(writeOutput(t)).Return(nil)
	proc.On("Duration", mock.Anything, mock.Anything).Return(3.0, nil)

	rec := postMultipart(t, h.Upload, "/upload",
		[]filePart{{field: "video", filename: "clip.mp4", content: "raw video bytes"}},
		map[string]string{"startTime": "2.0", "endTime": "5.0"})

	assert.Equal(t, http.StatusOK, rec.Code)
	proc.AssertExpectations(t)
}

func TestUpload_PartialBoundsIgnored(t *testing.T) {
	h, proc, _, _ := newTestHandlers(t)

	// Only full start/end pairs restrict the conversion.
	proc.On("Grayscale", mock.Anything, mock.Anything, mock.Anything, (*media.TimeSpan)(nil)).
		Run(writeOutput(t)).
		Return(nil).
		Twice()
	proc.On("Duration", mock.Anything, mock.Anything).Return(1.0, nil)

	rec := postMultipart(t, h.Upload, "/upload",
		[]filePart{{field: "video", filename: "clip.mp4", content: "raw video bytes"}},
		map[string]string{"startTime": "2.0"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postMultipart(t, h.Upload, "/upload",
		[]filePart{{field: "video", filename: "clip.mp4", content: "raw video bytes"}},
		map[string]string{"startTime": "abc", "endTime": "5.0"})
	assert.Equal(t, http.StatusOK, rec.Code)

	proc.AssertExpectations(t)
}

func TestUpload_InvalidTimeRange(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	// NaN and Inf parse as floats, so they reach the span check like any
	// reversed range and must never produce an ffmpeg invocation.
	tests := []struct {
		name  string
		start string
		end   string
	}{
		{name: "end before start", start: "5.0", end: "3.0"},
		{name: "NaN start", start: "NaN", end: "3.0"},
		{name: "infinite end", start: "0", end: "Inf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postMultipart(t, h.Upload, "/upload",
				[]filePart{{field: "video", filename: "clip.mp4", content: "raw video bytes"}},
				map[string]string{"startTime": tt.start, "endTime": tt.end})

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, "VALIDATION_ERROR", resp.Code)
			assert.Equal(t, "end time must be greater than start time", resp.Error)
		})
	}
}

func TestUpload_NoFile(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	rec := postMultipart(t, h.Upload, "/upload", nil, map[string]string{"other": "field"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, "no video file provided", resp.Error)
}

func TestUpload_InvalidFormat(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	rec := postMultipart(t, h.Upload, "/upload",
		[]filePart{{field: "video", filename: "notes.txt", content: "not a video"}}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, "invalid video file format", resp.Error)
}

func TestUpload_FFmpegFailure(t *testing.T) {
	h, proc, _, _ := newTestHandlers(t)

	stderr := "clip.mp4: Invalid data found when processing input"
	proc.On("Grayscale", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&media.FFmpegError{Args: []string{"-i", "clip.mp4"}, Stderr: stderr, Err: assert.AnError})

	rec := postMultipart(t, h.Upload, "/upload",
		[]filePart{{field: "video", filename: "clip.mp4", content: "raw video bytes"}}, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "FFMPEG_FAILED", resp.Code)
	assert.Equal(t, stderr, resp.Error, "tool diagnostic text should pass through verbatim")
}

func TestUpload_NotMultipart(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("plain body"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestUpload_BodyTooLarge(t *testing.T) {
	h, _, _, _ := newTestHandlers(t, WithMaxUploadBytes(64))

	rec := postMultipart(t, h.Upload, "/upload",
		[]filePart{{field: "video", filename: "clip.mp4", content: strings.Repeat("x", 1024)}}, nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestTrim_Success(t *testing.T) {
	h, proc, _, index := newTestHandlers(t)

	proc.On("Trim", mock.Anything, mock.Anything, mock.Anything, media.TimeSpan{Start: 2, End: 7}).
		Run(writeOutput(t)).
		Return(nil)
	proc.On("Duration", mock.Anything, mock.Anything).Return(5.0, nil)

	rec := postMultipart(t, h.Trim, "/trim",
		[]filePart{{field: "video", filename: "clip.mov", content: "raw video bytes"}},
		map[string]string{"startTime": "2", "endTime": "7"})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ProcessResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Video trimmed successfully", resp.Message)
	assert.Equal(t, "trimmed", resp.Type)

	art, err := index.FindByID(context.Background(), resp.FileID)
	require.NoError(t, err)
	assert.Equal(t, artifact.KindTrimmed, art.Kind)
	proc.AssertExpectations(t)
}

func TestTrim_MissingBounds(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	tests := []struct {
		name   string
		values map[string]string
	}{
		{name: "no bounds", values: nil},
		{name: "only start", values: map[string]string{"startTime": "2"}},
		{name: "only end", values: map[string]string{"endTime": "7"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postMultipart(t, h.Trim, "/trim",
				[]filePart{{field: "video", filename: "clip.mp4", content: "raw video bytes"}}, tt.values)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, "VALIDATION_ERROR", resp.Code)
			assert.Equal(t, "start time and end time are required", resp.Error)
		})
	}
}

func TestTrim_InvalidValues(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	rec := postMultipart(t, h.Trim, "/trim",
		[]filePart{{field: "video", filename: "clip.mp4", content: "raw video bytes"}},
		map[string]string{"startTime": "abc", "endTime": "7"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, "invalid time values", resp.Error)
}

func TestTrim_InvalidRange(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	tests := []struct {
		name  string
		start string
		end   string
	}{
		{name: "end equals start", start: "5", end: "5"},
		{name: "end before start", start: "5", end: "3"},
		{name: "negative start", start: "-1", end: "3"},
		{name: "NaN start", start: "NaN", end: "3"},
		{name: "infinite end", start: "0", end: "Inf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postMultipart(t, h.Trim, "/trim",
				[]filePart{{field: "video", filename: "clip.mp4", content: "raw video bytes"}},
				map[string]string{"startTime": tt.start, "endTime": tt.end})

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, "VALIDATION_ERROR", resp.Code)
		})
	}
}

func TestMerge_Success(t *testing.T) {
	h, proc, store, index := newTestHandlers(t)

	proc.On("Merge", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			inputs := args.Get(1).([]string)
			require.Len(t, inputs, 3)
			writeOutput(t)(args)
		}).
		Return(nil)
	proc.On("Duration", mock.Anything, mock.Anything).Return(12.0, nil)

	rec := postMultipart(t, h.Merge, "/merge",
		[]filePart{
			{field: "video0", filename: "a.mp4", content: "first"},
			{field: "video1", filename: "b.avi", content: "second"},
			{field: "video2", filename: "c.mp4", content: "third"},
		},
		map[string]string{"videoCount": "3"})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ProcessResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Successfully merged 3 videos", resp.Message)
	assert.Equal(t, "merged", resp.Type)

	art, err := index.FindByID(context.Background(), resp.FileID)
	require.NoError(t, err)
	assert.Equal(t, artifact.KindMerged, art.Kind)

	entries, err := os.ReadDir(store.UploadDir())
	require.NoError(t, err)
	assert.Empty(t, entries, "staged merge inputs should be removed")
	proc.AssertExpectations(t)
}

func TestMerge_CountValidation(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	file := []filePart{{field: "video0", filename: "a.mp4", content: "first"}}

	tests := []struct {
		name    string
		values  map[string]string
		message string
	}{
		{name: "missing count", values: nil, message: "at least 2 videos are required for merging"},
		{name: "count too low", values: map[string]string{"videoCount": "1"}, message: "at least 2 videos are required for merging"},
		{name: "count not numeric", values: map[string]string{"videoCount": "abc"}, message: "invalid video count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postMultipart(t, h.Merge, "/merge", file, tt.values)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, "VALIDATION_ERROR", resp.Code)
			assert.Equal(t, tt.message, resp.Error)
		})
	}
}

func TestMerge_MissingFile(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	rec := postMultipart(t, h.Merge, "/merge",
		[]filePart{
			{field: "video0", filename: "a.mp4", content: "first"},
			{field: "video1", filename: "b.mp4", content: "second"},
		},
		map[string]string{"videoCount": "3"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, "video file video2 is missing", resp.Error)
}

func TestMerge_HugeCount(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	// A count in the quadrillions is well-formed form data. It must fail
	// on the first missing video field, not by allocating for the claim.
	rec := postMultipart(t, h.Merge, "/merge",
		[]filePart{
			{field: "video0", filename: "a.mp4", content: "first"},
			{field: "video1", filename: "b.mp4", content: "second"},
		},
		map[string]string{"videoCount": "100000000000000000"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, "video file video2 is missing", resp.Error)
}

func TestMerge_InvalidFormat(t *testing.T) {
	h, _, store, _ := newTestHandlers(t)

	rec := postMultipart(t, h.Merge, "/merge",
		[]filePart{
			{field: "video0", filename: "a.mp4", content: "first"},
			{field: "video1", filename: "b.txt", content: "second"},
		},
		map[string]string{"videoCount": "2"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, "invalid video file format", resp.Error)

	entries, err := os.ReadDir(store.UploadDir())
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing should be staged for a rejected merge")
}

func TestDownload_Success(t *testing.T) {
	h, _, store, index := newTestHandlers(t)
	art := seedArtifact(t, store, index, "abc-123", artifact.KindGrayscale, "mp4", "grayscale video bytes")

	req := httptest.NewRequest(http.MethodGet, "/download/"+art.ID, nil)
	req.SetPathValue("id", art.ID)
	rec := httptest.NewRecorder()

	h.Download(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="abc-123_bw.mp4"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "grayscale video bytes", rec.Body.String())
}

func TestDownload_NotFound(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/download/nonexistent", nil)
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()

	h.Download(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "ARTIFACT_NOT_FOUND", resp.Code)
	assert.Equal(t, "file not found", resp.Error)
}

func TestDownload_StaleRecord(t *testing.T) {
	h, _, _, index := newTestHandlers(t)

	// A record whose file vanished outside the service.
	stale := artifact.New("ghost", artifact.KindMerged, "mp4", filepath.Join(t.TempDir(), "ghost_merged.mp4"))
	require.NoError(t, index.Save(context.Background(), stale))

	req := httptest.NewRequest(http.MethodGet, "/download/ghost", nil)
	req.SetPathValue("id", "ghost")
	rec := httptest.NewRecorder()

	h.Download(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := index.FindByID(context.Background(), "ghost")
	require.ErrorIs(t, err, artifact.ErrNotFound, "stale record should be dropped")
}

func TestDownload_MissingID(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/download/", nil)
	rec := httptest.NewRecorder()

	h.Download(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestGetArtifact_Success(t *testing.T) {
	h, _, store, index := newTestHandlers(t)
	art := seedArtifact(t, store, index, "abc-123", artifact.KindTrimmed, "mov", "trimmed bytes")
	art.DurationSeconds = 5.5
	require.NoError(t, index.Save(context.Background(), art))

	req := httptest.NewRequest(http.MethodGet, "/artifacts/"+art.ID, nil)
	req.SetPathValue("id", art.ID)
	rec := httptest.NewRecorder()

	h.GetArtifact(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ArtifactResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.FileID)
	assert.Equal(t, "trimmed", resp.Type)
	assert.Equal(t, "abc-123_trimmed.mov", resp.Filename)
	assert.Equal(t, int64(len("trimmed bytes")), resp.SizeBytes)
	assert.Equal(t, 5.5, resp.DurationSeconds)
	assert.Empty(t, resp.S3URL)
	assert.False(t, resp.CreatedAt.IsZero())
}

func TestGetArtifact_NotFound(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/artifacts/nonexistent", nil)
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()

	h.GetArtifact(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "ARTIFACT_NOT_FOUND", resp.Code)
}

func TestDeleteArtifact_Success(t *testing.T) {
	h, _, store, index := newTestHandlers(t)
	art := seedArtifact(t, store, index, "abc-123", artifact.KindGrayscale, "mp4", "grayscale video bytes")

	req := httptest.NewRequest(http.MethodDelete, "/artifacts/"+art.ID, nil)
	req.SetPathValue("id", art.ID)
	rec := httptest.NewRecorder()

	h.DeleteArtifact(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoFileExists(t, art.Path)

	_, err := index.FindByID(context.Background(), art.ID)
	require.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestDeleteArtifact_NotFound(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodDelete, "/artifacts/nonexistent", nil)
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()

	h.DeleteArtifact(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "ARTIFACT_NOT_FOUND", resp.Code)
}

func TestDeleteArtifact_FileAlreadyMissing(t *testing.T) {
	h, _, store, index := newTestHandlers(t)
	art := seedArtifact(t, store, index, "abc-123", artifact.KindGrayscale, "mp4", "grayscale video bytes")
	require.NoError(t, os.Remove(art.Path))

	req := httptest.NewRequest(http.MethodDelete, "/artifacts/"+art.ID, nil)
	req.SetPathValue("id", art.ID)
	rec := httptest.NewRecorder()

	h.DeleteArtifact(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code, "purge should succeed when only the file is gone")

	_, err := index.FindByID(context.Background(), art.ID)
	require.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestRouter_Integration(t *testing.T) {
	h, proc, store, index := newTestHandlers(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	router := NewRouter(h, logger, DefaultConfig())

	t.Run("health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("upload through router", func(t *testing.T) {
		proc.On("Grayscale", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Run(writeOutput(t)).
			Return(nil)
		proc.On("Duration", mock.Anything, mock.Anything).Return(1.0, nil)

		body, contentType := multipartBody(t,
			[]filePart{{field: "video", filename: "clip.mp4", content: "raw video bytes"}}, nil)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("download extracts path id", func(t *testing.T) {
		art := seedArtifact(t, store, index, "router-id", artifact.KindMerged, "mp4", "merged bytes")

		req := httptest.NewRequest(http.MethodGet, "/download/"+art.ID, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "merged bytes", rec.Body.String())
	})

	t.Run("unknown route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/nope", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/upload", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestCORSMiddleware(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	cfg := Config{AllowedOrigins: []string{"https://example.com"}}
	router := NewRouter(h, logger, cfg)

	// Test with allowed origin
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	// Test with disallowed origin
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// Test OPTIONS preflight
	req = httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "https://example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// Create a handler that panics
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	handler := RecoveryMiddleware(logger)(panicHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	// Should not panic
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
}
