package tts

import (
	"context"
	"sync"
	"time"
)

// mockBytesPerChar makes mock audio last 60ms per character at 16 kHz.
const mockBytesPerChar = 1920

// Mock is a Provider for tests. Unless SynthesizeFunc is set it returns
// silent 16 kHz PCM, 60ms per character of text.
type Mock struct {
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)

	// HealthErr is returned by Health.
	HealthErr error

	// Delay is waited out before each synthesis; ctx interrupts it.
	Delay time.Duration

	mu     sync.Mutex
	texts  []string
	health int
	closes int
}

func NewMock() *Mock {
	return &Mock{}
}

// Failing returns a mock whose Synthesize and Health both fail with err.
func Failing(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(context.Context, string) (*AudioResult, error) {
			return nil, err
		},
		HealthErr: err,
	}
}

func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	return silence(text), nil
}

func silence(text string) *AudioResult {
	format := AudioFormat{Encoding: EncodingPCM16, SampleRate: 16000, Channels: 1, BitDepth: 16}
	audio := make([]byte, len(text)*mockBytesPerChar)
	return &AudioResult{
		Audio:     audio,
		Format:    format,
		CharCount: len(text),
		LatencyMs: 1,
		Duration:  PCMDuration(len(audio), format.SampleRate),
		Provider:  "mock",
	}
}

func (m *Mock) Health(ctx context.Context) error {
	m.mu.Lock()
	m.health++
	m.mu.Unlock()
	return m.HealthErr
}

func (m *Mock) Name() string {
	return "mock"
}

func (m *Mock) Close() error {
	m.mu.Lock()
	m.closes++
	m.mu.Unlock()
	return nil
}

// Texts returns every text passed to Synthesize, in order.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// CallCount returns how often Synthesize, Health or Close ran.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch method {
	case "Synthesize":
		return len(m.texts)
	case "Health":
		return m.health
	case "Close":
		return m.closes
	}
	return 0
}

var _ Provider = (*Mock)(nil)
