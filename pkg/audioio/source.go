package audioio

import (
	"context"
	"errors"
	"io"
	"math"
)

var (
	ErrDeviceUnavailable = errors.New("audioio: device unavailable")
	ErrCaptureFailure    = errors.New("audioio: capture failure")
	ErrNotOpen           = errors.New("audioio: source not open")
)

// AudioChunk is one read's worth of interleaved PCM16 samples.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// RMS is the chunk's loudness on the int16 scale.
func (c *AudioChunk) RMS() float64 {
	return RMS(c.Samples)
}

// RMS returns the root-mean-square amplitude of samples, 0 for none.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Source is a microphone. One goroutine uses it at a time: Open, Read
// until done, Close. It may be reopened after Close.
type Source interface {
	// Open acquires the device. Failures wrap ErrDeviceUnavailable.
	Open(ctx context.Context) error

	// Read blocks for the next Config().ChunkSize frames. Failures wrap
	// ErrCaptureFailure.
	Read(ctx context.Context) (AudioChunk, error)

	Config() Config
	Name() string

	// Close releases the device and may be called more than once.
	io.Closer
}
