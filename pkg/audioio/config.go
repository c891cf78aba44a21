// Package audioio provides microphone capture for the voice pipeline.
//
// Backends:
//   - PortAudio - default input device on Linux and macOS
//   - Mock - CI/Testing without hardware
//
// The backend is selected from configuration; "auto" means PortAudio.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects PortAudio.
	BackendAuto Backend = "auto"
	// BackendPortAudio uses PortAudio for capture.
	BackendPortAudio Backend = "portaudio"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto"
	Backend Backend `toml:"backend" json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	// Default: 16000 (Whisper's native rate)
	SampleRate int `toml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `toml:"channels" json:"channels"`

	// ChunkSize is the number of frames returned by each Read.
	// Default: 1024 (64ms at 16kHz)
	ChunkSize int `toml:"chunk_size" json:"chunk_size"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendAuto,
		SampleRate: 16000,
		Channels:   1,
		ChunkSize:  1024,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	return nil
}

// ChunkDuration returns the duration covered by one chunk.
func (c *Config) ChunkDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.ChunkSize) * time.Second / time.Duration(c.SampleRate)
}

// ChunksFor converts a duration into a whole number of chunks.
func (c *Config) ChunksFor(d time.Duration) int {
	chunk := c.ChunkDuration()
	if chunk <= 0 {
		return 0
	}
	return int(d / chunk)
}
