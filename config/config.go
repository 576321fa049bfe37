// Package config defines the explicit configuration structure shared by the
// sender and receiver. Every tunable lives here and is passed to components
// at construction; nothing reads ambient globals.
//
// All values are optional in the YAML file and act as defaults for CLI
// flags. CLI flags always override config values.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Default tunables. Chunk size and stall timeout are protocol-level
// constants shared with the peer out-of-band: a receiver built with a
// different chunk size corrupts reassembly without detection.
const (
	DefaultChunkSize       = 2048
	DefaultStallTimeout    = 5 * time.Second
	DefaultPollInterval    = 50 * time.Millisecond
	DefaultFrameQueueSize  = 1000
	DefaultResultQueueSize = 1000
	DefaultGrabRate        = 20 // frames per second
	DefaultOfferTimeout    = 500 * time.Millisecond
	DefaultRetryDelay      = time.Second
	DefaultCadence         = 100 * time.Millisecond
	DefaultKeepAwakeEvery  = 5 * time.Minute
)

// Config represents a prism.yaml configuration file.
type Config struct {
	// ChunkSize is the fixed chunk size in bytes. Must match the peer.
	ChunkSize int `yaml:"chunk_size"`

	// StallTimeout is the inactivity interval after which an incomplete
	// session is treated as finished and persisted as a draft. A heuristic,
	// not a proof of completion.
	StallTimeout Duration `yaml:"stall_timeout"`

	// PollInterval bounds how long the assembler waits on the results
	// queue before re-evaluating stall and cancellation.
	PollInterval Duration `yaml:"poll_interval"`

	// FrameQueueSize bounds the capture queue; full means drop.
	FrameQueueSize int `yaml:"frame_queue_size"`

	// ResultQueueSize bounds the decoded-results queue; full means the
	// decoder blocks (decoded results are never dropped).
	ResultQueueSize int `yaml:"result_queue_size"`

	// Decoders is the decode worker pool size. Zero means NumCPU.
	Decoders int `yaml:"decoders"`

	// GrabRate is the target frame acquisition rate, frames per second.
	GrabRate int `yaml:"grab_fps"`

	// OfferTimeout is how long the grabber waits for frame queue space
	// before dropping the frame.
	OfferTimeout Duration `yaml:"offer_timeout"`

	// RetryDelay is the pause after a frame acquisition fault.
	RetryDelay Duration `yaml:"retry_delay"`

	// Cadence is the sender's presentation interval per symbol.
	Cadence Duration `yaml:"cadence"`

	// KeepAwakeEvery is the idle-prevention click interval.
	KeepAwakeEvery Duration `yaml:"keep_awake_every"`

	// OutDir is where the receiver writes restored files, drafts, and
	// manifests. Empty means the working directory.
	OutDir string `yaml:"out_dir"`

	// Archive configures optional post-completion upload of the restored
	// file to object storage.
	Archive ArchiveConfig `yaml:"archive"`
}

// ArchiveConfig holds archive upload defaults from the config file.
type ArchiveConfig struct {
	// Backend is "s3", "fs", or empty (archiving disabled).
	Backend string `yaml:"backend"`
	// Path is "bucket/prefix" for the s3 backend, a directory for fs.
	Path string `yaml:"path"`
	// Region is the AWS region (optional, uses default chain).
	Region string `yaml:"region"`
	// Endpoint is a custom S3 endpoint for S3-compatible providers.
	Endpoint string `yaml:"endpoint"`
	// PathStyle forces path-style addressing (MinIO, R2).
	PathStyle bool `yaml:"path_style"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ChunkSize:       DefaultChunkSize,
		StallTimeout:    Duration{DefaultStallTimeout},
		PollInterval:    Duration{DefaultPollInterval},
		FrameQueueSize:  DefaultFrameQueueSize,
		ResultQueueSize: DefaultResultQueueSize,
		Decoders:        runtime.NumCPU(),
		GrabRate:        DefaultGrabRate,
		OfferTimeout:    Duration{DefaultOfferTimeout},
		RetryDelay:      Duration{DefaultRetryDelay},
		Cadence:         Duration{DefaultCadence},
		KeepAwakeEvery:  Duration{DefaultKeepAwakeEvery},
	}
}

// Validate checks configuration invariants shared by both roles.
func (c *Config) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.StallTimeout.Duration <= 0 {
		return fmt.Errorf("stall_timeout must be positive, got %s", c.StallTimeout.Duration)
	}
	if c.PollInterval.Duration <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval.Duration)
	}
	if c.PollInterval.Duration >= c.StallTimeout.Duration {
		return fmt.Errorf("poll_interval %s must be shorter than stall_timeout %s",
			c.PollInterval.Duration, c.StallTimeout.Duration)
	}
	if c.FrameQueueSize < 1 || c.ResultQueueSize < 1 {
		return fmt.Errorf("queue sizes must be positive, got %d/%d",
			c.FrameQueueSize, c.ResultQueueSize)
	}
	if c.Decoders < 1 {
		return fmt.Errorf("decoders must be positive, got %d", c.Decoders)
	}
	if c.GrabRate < 1 {
		return fmt.Errorf("grab_fps must be positive, got %d", c.GrabRate)
	}
	if c.Cadence.Duration <= 0 {
		return fmt.Errorf("cadence must be positive, got %s", c.Cadence.Duration)
	}
	switch c.Archive.Backend {
	case "", "s3", "fs":
	default:
		return fmt.Errorf("archive backend must be s3, fs, or empty, got %q", c.Archive.Backend)
	}
	if c.Archive.Backend != "" && c.Archive.Path == "" {
		return fmt.Errorf("archive backend %s requires a path", c.Archive.Backend)
	}
	return nil
}
