package audioio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSource captures from the default input device.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
}

// NewPortAudioSource creates a PortAudio source. The device is not touched
// until Open.
func NewPortAudioSource(cfg Config, logger *slog.Logger) *PortAudioSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortAudioSource{
		cfg:    cfg,
		logger: logger.With("backend", "portaudio"),
	}
}

// Open initializes PortAudio and starts a blocking input stream.
func (s *PortAudioSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: initialize: %v", ErrDeviceUnavailable, err)
	}

	buf := make([]int16, s.cfg.ChunkSize*s.cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(s.cfg.Channels, 0, float64(s.cfg.SampleRate), s.cfg.ChunkSize, buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: open stream: %v", ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("%w: start stream: %v", ErrDeviceUnavailable, err)
	}

	s.stream = stream
	s.buf = buf
	s.logger.Info("microphone opened", "sample_rate", s.cfg.SampleRate, "chunk_size", s.cfg.ChunkSize)
	return nil
}

// Read blocks for one chunk. Input overflow is not treated as an error.
func (s *PortAudioSource) Read(ctx context.Context) (AudioChunk, error) {
	if err := ctx.Err(); err != nil {
		return AudioChunk{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return AudioChunk{}, ErrNotOpen
	}
	if err := s.stream.Read(); err != nil && err != portaudio.InputOverflowed {
		return AudioChunk{}, fmt.Errorf("%w: %v", ErrCaptureFailure, err)
	}

	samples := make([]int16, len(s.buf))
	copy(samples, s.buf)
	return AudioChunk{
		Samples:    samples,
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
	}, nil
}

// Config returns the audio configuration.
func (s *PortAudioSource) Config() Config {
	return s.cfg
}

// Name returns "portaudio".
func (s *PortAudioSource) Name() string {
	return string(BackendPortAudio)
}

// Close stops the stream and releases PortAudio.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil
	}
	s.stream.Stop()
	err := s.stream.Close()
	portaudio.Terminate()
	s.stream = nil
	s.buf = nil
	s.logger.Info("microphone closed")
	return err
}

var _ Source = (*PortAudioSource)(nil)
