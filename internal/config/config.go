// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrUploadDirRequired is returned when UPLOAD_DIR is empty.
	ErrUploadDirRequired = errors.New("config: UPLOAD_DIR must not be empty")
	// ErrOutputDirRequired is returned when OUTPUT_DIR is empty.
	ErrOutputDirRequired = errors.New("config: OUTPUT_DIR must not be empty")
	// ErrFFmpegPathRequired is returned when FFMPEG_PATH is empty.
	ErrFFmpegPathRequired = errors.New("config: FFMPEG_PATH must not be empty")
	// ErrFFprobePathRequired is returned when FFPROBE_PATH is empty.
	ErrFFprobePathRequired = errors.New("config: FFPROBE_PATH must not be empty")
	// ErrInvalidMaxUpload is returned when MAX_UPLOAD_MB is zero or negative.
	ErrInvalidMaxUpload = errors.New("config: MAX_UPLOAD_MB must be positive")
	// ErrInvalidFFmpegTimeout is returned when FFMPEG_TIMEOUT_SEC is negative.
	ErrInvalidFFmpegTimeout = errors.New("config: FFMPEG_TIMEOUT_SEC must not be negative")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Storage settings
	UploadDir string `env:"UPLOAD_DIR, default=uploads" json:"upload_dir"`
	OutputDir string `env:"OUTPUT_DIR, default=outputs" json:"output_dir"`
	IndexDir  string `env:"INDEX_DIR" json:"index_dir,omitempty"` // empty = in-memory index

	// FFmpeg settings
	FFmpegPath       string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath      string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	FFmpegTimeoutSec int    `env:"FFMPEG_TIMEOUT_SEC, default=0" json:"ffmpeg_timeout_sec"` // 0 = no timeout

	// Upload settings
	MaxUploadMB    int64  `env:"MAX_UPLOAD_MB, default=512" json:"max_upload_mb"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// MaxUploadBytes returns the request body cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// FFmpegTimeout returns the per-invocation tool timeout.
// A zero duration means invocations are bounded only by the request context.
func (c *Config) FFmpegTimeout() time.Duration {
	return time.Duration(c.FFmpegTimeoutSec) * time.Second
}

// Origins returns the CORS allow-list parsed from ALLOWED_ORIGINS.
func (c *Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.UploadDir == "" {
		return ErrUploadDirRequired
	}
	if c.OutputDir == "" {
		return ErrOutputDirRequired
	}
	if c.FFmpegPath == "" {
		return ErrFFmpegPathRequired
	}
	if c.FFprobePath == "" {
		return ErrFFprobePathRequired
	}
	if c.MaxUploadMB <= 0 {
		return ErrInvalidMaxUpload
	}
	if c.FFmpegTimeoutSec < 0 {
		return ErrInvalidFFmpegTimeout
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, UploadDir: %s, OutputDir: %s, IndexDir: %s, FFmpegPath: %s, FFprobePath: %s, FFmpegTimeoutSec: %d, MaxUploadMB: %d, AllowedOrigins: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.UploadDir,
		c.OutputDir,
		c.IndexDir,
		c.FFmpegPath,
		c.FFprobePath,
		c.FFmpegTimeoutSec,
		c.MaxUploadMB,
		c.AllowedOrigins,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
