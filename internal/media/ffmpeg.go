package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Static errors for media operations.
var (
	// ErrInvalidTimeSpan is returned when a time range is empty or negative.
	ErrInvalidTimeSpan = errors.New("invalid time span: end must be greater than start and start must not be negative")
	// ErrNoInputs is returned when no video paths are provided for merging.
	ErrNoInputs = errors.New("no video paths provided")
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

// FFmpegProcessor implements Processor using the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
	// timeout bounds each tool invocation. Zero means invocations run
	// until the request context is done.
	timeout time.Duration
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// Empty binary paths default to "ffmpeg" / "ffprobe" (found via PATH).
func NewFFmpegProcessor(ffmpegPath, ffprobePath string, timeout time.Duration) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, timeout: timeout}
}

// Grayscale desaturates a video by zeroing saturation in the hue filter.
// The audio stream is copied untouched. When span is non-nil, only that
// sub-range of the input is processed.
func (p *FFmpegProcessor) Grayscale(ctx context.Context, input, output string, span *TimeSpan) error {
	args, err := grayscaleArgs(input, output, span)
	if err != nil {
		return err
	}
	return p.runFFmpeg(ctx, args)
}

// grayscaleArgs builds the argument list for a grayscale conversion.
func grayscaleArgs(input, output string, span *TimeSpan) ([]string, error) {
	args := []string{
		"-y", // Overwrite output file without asking
		"-i", input,
	}

	if span != nil {
		if err := span.Validate(); err != nil {
			return nil, err
		}
		args = append(args,
			"-ss", formatSeconds(span.Start),
			"-t", formatSeconds(span.Duration()),
		)
	}

	args = append(args,
		"-vf", "hue=s=0", // Zero saturation = grayscale
		"-c:a", "copy", // Keep the audio stream as-is
		output,
	)
	return args, nil
}

// Trim extracts the given sub-range from a video using stream copy.
func (p *FFmpegProcessor) Trim(ctx context.Context, input, output string, span TimeSpan) error {
	args, err := trimArgs(input, output, span)
	if err != nil {
		return err
	}
	return p.runFFmpeg(ctx, args)
}

// trimArgs builds the argument list for a stream-copy trim.
func trimArgs(input, output string, span TimeSpan) ([]string, error) {
	if err := span.Validate(); err != nil {
		return nil, err
	}
	return []string{
		"-y",
		"-i", input,
		"-ss", formatSeconds(span.Start),
		"-t", formatSeconds(span.Duration()),
		"-c", "copy", // Copy streams without re-encoding
		output,
	}, nil
}

// mergeAttempt is one entry in the ordered merge strategy.
type mergeAttempt struct {
	name string
	args []string
}

// mergeAttempts returns the ordered list of merge strategies. The stream
// copy is tried first; the re-encode normalizes inputs whose codecs or
// parameters the concat demuxer cannot stitch together.
func mergeAttempts(listFile, output string) []mergeAttempt {
	return []mergeAttempt{
		{
			name: "stream-copy",
			args: []string{
				"-y",
				"-f", "concat", // Use concat demuxer
				"-safe", "0", // Allow absolute paths
				"-i", listFile,
				"-c", "copy",
				output,
			},
		},
		{
			name: "reencode",
			args: []string{
				"-y",
				"-f", "concat",
				"-safe", "0",
				"-i", listFile,
				"-c:v", "libx264", // Video codec
				"-preset", "fast", // Encoding speed preset
				"-crf", "23", // Quality (lower = better, 23 is default)
				"-c:a", "aac", // Audio codec
				"-b:a", "128k", // Audio bitrate
				output,
			},
		},
	}
}

// Merge concatenates multiple video files into a single output file.
// It walks the ordered attempts list and returns on the first success;
// if every attempt fails, the error of the last attempt is returned.
func (p *FFmpegProcessor) Merge(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return ErrNoInputs
	}

	// Create a temporary file list for the concat demuxer
	listFile, err := createConcatList(inputs)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(listFile) }()

	var lastErr error
	for _, attempt := range mergeAttempts(listFile, output) {
		if err := p.runFFmpeg(ctx, attempt.args); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// createConcatList creates a temporary file containing the list of video
// files in the format required by ffmpeg's concat demuxer.
func createConcatList(videoPaths []string) (string, error) {
	f, err := os.CreateTemp("", "ffmpeg-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range videoPaths {
		// Convert to absolute path for safety
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		// Escape single quotes in path
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return "", fmt.Errorf("write to concat list: %w", err)
		}
	}

	return f.Name(), nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Duration returns the duration in seconds of a media file.
// It uses ffprobe to extract the duration metadata.
func (p *FFmpegProcessor) Duration(ctx context.Context, path string) (float64, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var duration float64
	_, err = fmt.Sscanf(strings.TrimSpace(stdout.String()), "%f", &duration)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}

	return duration, nil
}
