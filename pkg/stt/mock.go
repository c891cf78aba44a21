package stt

import (
	"context"
	"io"
	"sync"
)

// Mock implements Transcriber for testing. It returns the scripted results
// in order and then repeats the last one.
type Mock struct {
	mu      sync.Mutex
	results []MockResult
	calls   int
	bytes   []int
}

// MockResult is one scripted transcription outcome.
type MockResult struct {
	Text string
	Err  error
}

// NewMock returns a transcriber that answers with the given results.
func NewMock(results ...MockResult) *Mock {
	return &Mock{results: results}
}

// Transcribe consumes the audio and returns the next scripted result.
func (m *Mock) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	n, _ := io.Copy(io.Discard, audio)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes = append(m.bytes, int(n))
	idx := m.calls
	m.calls++

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(m.results) == 0 {
		return "", ErrNoTranscript
	}
	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}
	r := m.results[idx]
	return r.Text, r.Err
}

// Calls returns how many times Transcribe ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// BytesRead returns the audio size of each call.
func (m *Mock) BytesRead() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.bytes...)
}

// Verify Mock implements Transcriber at compile time.
var _ Transcriber = (*Mock)(nil)
