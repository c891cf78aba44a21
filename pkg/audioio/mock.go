package audioio

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a mock audio source for testing.
// It plays back scripted chunks, then generates synthetic audio
// (silence or sine wave).
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	open    bool
	script  [][]int16
	openErr error
	readErr error
	paced   bool

	// Stats
	opens      atomic.Int64
	chunksRead atomic.Int64

	// Synthetic audio generation
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithChunks queues chunks returned by Read before synthetic audio.
func WithChunks(chunks ...[]int16) MockSourceOption {
	return func(m *MockSource) {
		m.script = append(m.script, chunks...)
	}
}

// WithOpenError makes Open fail with err.
func WithOpenError(err error) MockSourceOption {
	return func(m *MockSource) {
		m.openErr = err
	}
}

// WithReadError makes Read fail with err once the script is exhausted.
func WithReadError(err error) MockSourceOption {
	return func(m *MockSource) {
		m.readErr = err
	}
}

// WithPacing makes Read wait one chunk duration, like a real device.
func WithPacing() MockSourceOption {
	return func(m *MockSource) {
		m.paced = true
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		frequency: 0, // Silence by default
		amplitude: 0.5,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Open marks the source open.
func (m *MockSource) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opens.Add(1)
	if m.openErr != nil {
		return m.openErr
	}
	m.open = true
	m.logger.Debug("mock audio source opened", "sample_rate", m.cfg.SampleRate, "frequency", m.frequency)
	return nil
}

// SetOpenError changes the error returned by subsequent Opens.
func (m *MockSource) SetOpenError(err error) {
	m.mu.Lock()
	m.openErr = err
	m.mu.Unlock()
}

// Read returns the next scripted chunk, or synthetic audio.
func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	if m.paced {
		select {
		case <-ctx.Done():
			return AudioChunk{}, ctx.Err()
		case <-time.After(m.cfg.ChunkDuration()):
		}
	} else if err := ctx.Err(); err != nil {
		return AudioChunk{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return AudioChunk{}, ErrNotOpen
	}

	var samples []int16
	switch {
	case len(m.script) > 0:
		samples = m.script[0]
		m.script = m.script[1:]
	case m.readErr != nil:
		return AudioChunk{}, m.readErr
	default:
		samples = m.generate()
	}

	m.chunksRead.Add(1)
	return AudioChunk{
		Samples:    samples,
		SampleRate: m.cfg.SampleRate,
		Channels:   m.cfg.Channels,
	}, nil
}

func (m *MockSource) generate() []int16 {
	samples := make([]int16, m.cfg.ChunkSize*m.cfg.Channels)

	if m.frequency > 0 {
		for i := 0; i < m.cfg.ChunkSize; i++ {
			sample := m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate))
			sampleInt := int16(sample * 32767)

			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = sampleInt
			}

			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}
	// else: samples are already zero (silence)

	return samples
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return string(BackendMock)
}

// Close marks the source closed.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

// IsOpen reports whether the source is open.
func (m *MockSource) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Opens returns how many times Open was called.
func (m *MockSource) Opens() int64 {
	return m.opens.Load()
}

// ChunksRead returns how many chunks were read.
func (m *MockSource) ChunksRead() int64 {
	return m.chunksRead.Load()
}

// Constant returns a chunk of n samples with the same amplitude, whose RMS
// equals |amplitude|.
func Constant(n int, amplitude int16) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = amplitude
	}
	return samples
}

var _ Source = (*MockSource)(nil)
