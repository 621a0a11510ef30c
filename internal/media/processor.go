// Package media provides video processing on top of the ffmpeg CLI.
package media

import (
	"context"
	"fmt"
	"math"
	"strconv"
)

// Processor defines the interface for video processing operations.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Processor interface {
	// Grayscale desaturates a video and writes the result to output.
	// The audio stream is copied untouched. When span is non-nil, only
	// that sub-range of the input is processed.
	Grayscale(ctx context.Context, input, output string, span *TimeSpan) error

	// Trim extracts the given sub-range from a video using stream copy
	// (no re-encoding) and writes it to output.
	Trim(ctx context.Context, input, output string, span TimeSpan) error

	// Merge concatenates multiple video files into a single output file.
	// It runs an ordered list of attempts: a fast stream copy first, then
	// a re-encode with libx264/aac for inputs with incompatible codecs.
	// If every attempt fails, the error of the last attempt is returned.
	Merge(ctx context.Context, inputs []string, output string) error

	// Duration returns the duration in seconds of a media file.
	Duration(ctx context.Context, path string) (float64, error)
}

// TimeSpan is a half-open range of seconds within a media file.
type TimeSpan struct {
	Start float64
	End   float64
}

// Duration returns the length of the span in seconds.
func (s TimeSpan) Duration() float64 {
	return s.End - s.Start
}

// Validate checks that the span describes a positive range with finite
// bounds. NaN and infinite values parse as floats but can never describe a
// playable range, and NaN in particular slips through ordinary comparisons.
func (s TimeSpan) Validate() error {
	if !isFinite(s.Start) || !isFinite(s.End) || s.Start < 0 || s.End <= s.Start {
		return fmt.Errorf("%w: start=%s end=%s", ErrInvalidTimeSpan, formatSeconds(s.Start), formatSeconds(s.End))
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// formatSeconds renders a seconds value the way ffmpeg expects it on the
// command line, without trailing zeros ("5", "5.5", "0.25").
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
