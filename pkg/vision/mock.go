package vision

import (
	"context"
	"sync"
	"sync/atomic"
)

// MockCamera plays back scripted frames, then repeats a blank frame of the
// last scripted size.
type MockCamera struct {
	mu      sync.Mutex
	open    bool
	script  []Frame
	blank   Frame
	openErr error
	readErr error

	opens  atomic.Int64
	closes atomic.Int64
	reads  atomic.Int64
}

// MockCameraOption configures a MockCamera.
type MockCameraOption func(*MockCamera)

// WithFrames queues frames returned by Read.
func WithFrames(frames ...Frame) MockCameraOption {
	return func(m *MockCamera) {
		m.script = append(m.script, frames...)
	}
}

// WithCameraOpenError makes Open fail with err.
func WithCameraOpenError(err error) MockCameraOption {
	return func(m *MockCamera) {
		m.openErr = err
	}
}

// WithCameraReadError makes Read fail with err once the script is exhausted.
func WithCameraReadError(err error) MockCameraOption {
	return func(m *MockCamera) {
		m.readErr = err
	}
}

// NewMockCamera creates a mock camera producing width x height blank frames
// after its script.
func NewMockCamera(width, height int, opts ...MockCameraOption) *MockCamera {
	m := &MockCamera{blank: GrayFrame(width, height, 0)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open marks the camera open.
func (m *MockCamera) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens.Add(1)
	if m.openErr != nil {
		return m.openErr
	}
	m.open = true
	return nil
}

// Read returns the next scripted frame, or a blank one.
func (m *MockCamera) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return Frame{}, ErrCaptureFailure
	}
	m.reads.Add(1)
	switch {
	case len(m.script) > 0:
		f := m.script[0]
		m.script = m.script[1:]
		return f, nil
	case m.readErr != nil:
		return Frame{}, m.readErr
	default:
		return m.blank, nil
	}
}

// Close marks the camera closed.
func (m *MockCamera) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	m.closes.Add(1)
	return nil
}

// IsOpen reports whether the camera is open.
func (m *MockCamera) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Opens returns how many times Open was called.
func (m *MockCamera) Opens() int64 { return m.opens.Load() }

// Closes returns how many times Close was called.
func (m *MockCamera) Closes() int64 { return m.closes.Load() }

// Reads returns how many frames were read.
func (m *MockCamera) Reads() int64 { return m.reads.Load() }

// GrayFrame returns a uniform frame.
func GrayFrame(width, height int, value byte) Frame {
	gray := make([]byte, width*height)
	for i := range gray {
		gray[i] = value
	}
	return Frame{Width: width, Height: height, Gray: gray}
}

// MockLandmarker returns scripted hands per call, then no hands.
type MockLandmarker struct {
	mu     sync.Mutex
	script [][]Hand
	err    error
	calls  int
}

// NewMockLandmarker creates a landmarker answering with the given hands in order.
func NewMockLandmarker(script ...[]Hand) *MockLandmarker {
	return &MockLandmarker{script: script}
}

// SetError makes subsequent calls fail.
func (m *MockLandmarker) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Detect returns the next scripted hands.
func (m *MockLandmarker) Detect(ctx context.Context, f Frame) ([]Hand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.script) == 0 {
		return nil, nil
	}
	hands := m.script[0]
	m.script = m.script[1:]
	return hands, nil
}

// Calls returns how many times Detect ran.
func (m *MockLandmarker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockDiffer answers with scripted changed-pixel counts, then zero. It
// records the thresholds it was called with.
type MockDiffer struct {
	mu         sync.Mutex
	script     []int
	err        error
	calls      int
	threshold  uint8
	iterations int
}

// NewMockDiffer creates a differ answering with counts in order.
func NewMockDiffer(counts ...int) *MockDiffer {
	return &MockDiffer{script: counts}
}

// SetError makes subsequent calls fail.
func (m *MockDiffer) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Changed returns the next scripted count.
func (m *MockDiffer) Changed(prev, cur Frame, pixelThreshold uint8, iterations int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.threshold, m.iterations = pixelThreshold, iterations
	if m.err != nil {
		return 0, m.err
	}
	if len(m.script) == 0 {
		return 0, nil
	}
	n := m.script[0]
	m.script = m.script[1:]
	return n, nil
}

// Calls returns how many comparisons ran.
func (m *MockDiffer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var (
	_ Camera     = (*MockCamera)(nil)
	_ Landmarker = (*MockLandmarker)(nil)
	_ Differ     = (*MockDiffer)(nil)
)
