// Package video provides the use-case service for the editing operations.
// It orchestrates staging uploads, running ffmpeg, recording artifacts in
// the index and cleaning up staged inputs.
package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Darshan-git-hub/Edit-AI-dabba-version/internal/artifact"
	"github.com/Darshan-git-hub/Edit-AI-dabba-version/internal/media"
	"github.com/Darshan-git-hub/Edit-AI-dabba-version/internal/storage"
)

// Static errors for input validation.
var (
	// ErrUnsupportedFormat is returned for filenames without an accepted
	// video extension.
	ErrUnsupportedFormat = errors.New("unsupported video format")
	// ErrTooFewVideos is returned when a merge has fewer than two inputs.
	ErrTooFewVideos = errors.New("at least 2 videos are required for merging")
)

// allowedExtensions lists the accepted container formats by extension.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

// Ext extracts the lowercased extension (without the dot) from a client
// filename and checks it against the accepted formats. Only this
// extension is ever used on the filesystem; the client's basename is
// discarded.
func Ext(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
	return strings.TrimPrefix(ext, "."), nil
}

// Upload is one incoming video file.
type Upload struct {
	// Filename is the client-provided name, used only for its extension.
	Filename string
	// Data is the file content.
	Data io.Reader
}

// Service orchestrates the editing operations. Each operation stages the
// uploaded inputs under a fresh identifier, invokes the processor, records
// the completed artifact in the index and always removes the staged
// inputs, success or failure.
type Service struct {
	store     storage.Store
	index     artifact.Index
	processor media.Processor
	logger    *slog.Logger
}

// NewService creates a new Service.
func NewService(store storage.Store, index artifact.Index, processor media.Processor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		index:     index,
		processor: processor,
		logger:    logger,
	}
}

// Grayscale stages the upload, desaturates it (optionally restricted to
// span) and records the resulting artifact.
func (s *Service) Grayscale(ctx context.Context, up Upload, span *media.TimeSpan) (*artifact.Artifact, error) {
	ext, err := Ext(up.Filename)
	if err != nil {
		return nil, err
	}
	if span != nil {
		if err := span.Validate(); err != nil {
			return nil, err
		}
	}

	id := uuid.New().String()
	inputPath, err := s.store.SaveUpload(ctx, id+"."+ext, up.Data)
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	defer s.cleanup(ctx, inputPath)

	art := artifact.New(id, artifact.KindGrayscale, ext, "")
	art.Path = s.store.OutputPath(art.Filename())

	s.logger.Info("converting video to grayscale",
		slog.String("file_id", id),
		slog.Bool("sub_range", span != nil),
	)

	if err := s.processor.Grayscale(ctx, inputPath, art.Path, span); err != nil {
		s.discardPartial(ctx, art.Path)
		s.logger.Error("grayscale conversion failed",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return s.finalize(ctx, art)
}

// Trim stages the upload, extracts the span by stream copy and records
// the resulting artifact.
func (s *Service) Trim(ctx context.Context, up Upload, span media.TimeSpan) (*artifact.Artifact, error) {
	ext, err := Ext(up.Filename)
	if err != nil {
		return nil, err
	}
	if err := span.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	inputPath, err := s.store.SaveUpload(ctx, id+"."+ext, up.Data)
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	defer s.cleanup(ctx, inputPath)

	art := artifact.New(id, artifact.KindTrimmed, ext, "")
	art.Path = s.store.OutputPath(art.Filename())

	s.logger.Info("trimming video",
		slog.String("file_id", id),
		slog.Float64("start", span.Start),
		slog.Float64("end", span.End),
	)

	if err := s.processor.Trim(ctx, inputPath, art.Path, span); err != nil {
		s.discardPartial(ctx, art.Path)
		s.logger.Error("trim failed",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return s.finalize(ctx, art)
}

// Merge stages all uploads under one identifier, concatenates them and
// records the resulting artifact. The output container is always mp4.
func (s *Service) Merge(ctx context.Context, uploads []Upload) (*artifact.Artifact, error) {
	if len(uploads) < 2 {
		return nil, ErrTooFewVideos
	}

	// Validate every extension before staging any bytes.
	exts := make([]string, len(uploads))
	for i, up := range uploads {
		ext, err := Ext(up.Filename)
		if err != nil {
			return nil, fmt.Errorf("video %d: %w", i, err)
		}
		exts[i] = ext
	}

	id := uuid.New().String()
	inputPaths := make([]string, 0, len(uploads))
	defer func() {
		for _, p := range inputPaths {
			s.cleanup(ctx, p)
		}
	}()

	for i, up := range uploads {
		name := fmt.Sprintf("%s_input_%d.%s", id, i, exts[i])
		path, err := s.store.SaveUpload(ctx, name, up.Data)
		if err != nil {
			return nil, fmt.Errorf("stage video %d: %w", i, err)
		}
		inputPaths = append(inputPaths, path)
	}

	art := artifact.New(id, artifact.KindMerged, "mp4", "")
	art.Path = s.store.OutputPath(art.Filename())

	s.logger.Info("merging videos",
		slog.String("file_id", id),
		slog.Int("count", len(uploads)),
	)

	if err := s.processor.Merge(ctx, inputPaths, art.Path); err != nil {
		s.discardPartial(ctx, art.Path)
		s.logger.Error("merge failed",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return s.finalize(ctx, art)
}

// Resolve looks up an artifact by identifier and verifies its file still
// exists. A record whose file vanished outside the service is dropped
// from the index and reported as not found.
func (s *Service) Resolve(ctx context.Context, id string) (*artifact.Artifact, error) {
	art, err := s.index.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Stat(ctx, art.Path); err != nil {
		s.logger.Warn("dropping stale artifact record",
			slog.String("file_id", id),
			slog.String("path", art.Path),
		)
		_ = s.index.Delete(ctx, id)
		return nil, artifact.ErrNotFound
	}

	return art, nil
}

// Purge removes an artifact's file and its index entry. A record whose
// file is already gone is still removed from the index.
func (s *Service) Purge(ctx context.Context, id string) error {
	art, err := s.index.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Cleanup(ctx, []string{art.Path}); err != nil {
		s.logger.Warn("removing artifact file",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("artifact purged", slog.String("file_id", id))
	return s.index.Delete(ctx, id)
}

// Reconcile aligns the index with the output directory. Artifact files
// following the naming convention that the index does not know are
// adopted; records whose file vanished are dropped. It is run once at
// startup so artifacts survive index loss and index entries do not
// outlive their files.
func (s *Service) Reconcile(ctx context.Context) (adopted, dropped int, err error) {
	names, err := s.store.ListOutputs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("scan output directory: %w", err)
	}

	records, err := s.index.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list index: %w", err)
	}
	known := make(map[string]bool, len(records))
	for _, r := range records {
		known[r.ID] = true
	}

	for _, name := range names {
		id, kind, ext, ok := artifact.ParseFilename(name)
		if !ok || known[id] {
			continue
		}

		art := artifact.New(id, kind, ext, s.store.OutputPath(name))
		if size, err := s.store.Stat(ctx, art.Path); err == nil {
			art.SizeBytes = size
		}
		if err := s.index.Save(ctx, art); err != nil {
			return adopted, dropped, fmt.Errorf("adopt artifact %s: %w", id, err)
		}
		adopted++
	}

	for _, r := range records {
		if _, err := s.store.Stat(ctx, r.Path); err == nil {
			continue
		}
		if err := s.index.Delete(ctx, r.ID); err != nil && !errors.Is(err, artifact.ErrNotFound) {
			return adopted, dropped, fmt.Errorf("drop stale record %s: %w", r.ID, err)
		}
		dropped++
	}

	if adopted > 0 || dropped > 0 {
		s.logger.Info("reconciled artifact index",
			slog.Int("adopted", adopted),
			slog.Int("dropped", dropped),
		)
	}
	return adopted, dropped, nil
}

// finalize stats, probes and mirrors a freshly produced artifact, then
// records it in the index.
func (s *Service) finalize(ctx context.Context, art *artifact.Artifact) (*artifact.Artifact, error) {
	size, err := s.store.Stat(ctx, art.Path)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}
	art.SizeBytes = size

	if d, err := s.processor.Duration(ctx, art.Path); err != nil {
		// Metadata only; a failed probe never fails the request.
		s.logger.Warn("probe artifact duration",
			slog.String("file_id", art.ID),
			slog.String("error", err.Error()),
		)
	} else {
		art.DurationSeconds = d
	}

	s.mirror(ctx, art)

	if err := s.index.Save(ctx, art); err != nil {
		return nil, fmt.Errorf("index artifact: %w", err)
	}

	s.logger.Info("artifact ready",
		slog.String("file_id", art.ID),
		slog.String("kind", string(art.Kind)),
		slog.Int64("size_bytes", art.SizeBytes),
	)
	return art, nil
}

// mirror replicates the artifact to S3 when the store is configured for
// it. Mirroring is best-effort; failures are logged and the artifact
// stays local-only.
func (s *Service) mirror(ctx context.Context, art *artifact.Artifact) {
	f, err := s.store.Open(ctx, art.Path)
	if err != nil {
		s.logger.Warn("open artifact for mirroring",
			slog.String("file_id", art.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	defer func() { _ = f.Close() }()

	url, err := s.store.MirrorToS3(ctx, art.Filename(), f)
	if errors.Is(err, storage.ErrS3NotConfigured) {
		return
	}
	if err != nil {
		s.logger.Warn("mirror artifact to S3",
			slog.String("file_id", art.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	art.S3URL = url
	s.logger.Info("artifact mirrored to S3",
		slog.String("file_id", art.ID),
		slog.String("url", url),
	)
}

// cleanup removes a staged input. It runs even when the request context
// is already cancelled.
func (s *Service) cleanup(ctx context.Context, path string) {
	if err := s.store.Cleanup(context.WithoutCancel(ctx), []string{path}); err != nil {
		s.logger.Warn("cleanup staged input",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// discardPartial removes whatever the tool left behind after a failed run.
func (s *Service) discardPartial(ctx context.Context, path string) {
	_ = s.store.Cleanup(context.WithoutCancel(ctx), []string{path})
}
