package voice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-hologram/pkg/audioio"
)

func testLimits() Limits {
	cfg := DefaultConfig()
	return cfg.Limits()
}

func TestDefaultLimits(t *testing.T) {
	l := testLimits()
	if l.SilenceChunks != 31 || l.MaxWaitChunks != 156 || l.MaxChunks != 312 {
		t.Errorf("limits = %+v", l)
	}
}

func feed(s *Session, n int, amplitude int16) (fed int, done bool) {
	for i := 0; i < n; i++ {
		fed++
		if s.Feed(audioio.Constant(1024, amplitude)) {
			return fed, true
		}
	}
	return fed, false
}

func TestSessionCapturesUtterance(t *testing.T) {
	s := NewSession(testLimits())

	// Leading quiet chunks are dropped.
	if _, done := feed(s, 20, 100); done {
		t.Fatal("session ended during leading silence")
	}
	if _, done := feed(s, 15, 1200); done {
		t.Fatal("session ended during speech")
	}

	// 31 silent chunks are tolerated, the 32nd ends the session.
	fed, done := feed(s, 40, 50)
	if !done || fed != 32 {
		t.Fatalf("session ended after %d silent chunks (done=%v), want 32", fed, done)
	}

	rec, ok := s.Recording(16000, 1)
	if !ok {
		t.Fatal("expected a recording")
	}
	if rec.Frames != 15+32 {
		t.Errorf("Frames = %d, want 47", rec.Frames)
	}
	if len(rec.Samples) != 47*1024 {
		t.Errorf("samples = %d", len(rec.Samples))
	}
	if rec.Peak != 1200 {
		t.Errorf("Peak = %v, want 1200", rec.Peak)
	}
	if rec.Duration() != 3008*time.Millisecond {
		t.Errorf("Duration = %v", rec.Duration())
	}
}

func TestSessionLowEnergyYieldsNothing(t *testing.T) {
	s := NewSession(testLimits())

	// Above the silence threshold but never above the start threshold.
	fed, done := feed(s, 1000, 450)
	if !done {
		t.Fatal("session should give up")
	}
	if fed != 157 {
		t.Errorf("gave up after %d chunks, want 157", fed)
	}
	if s.Started() {
		t.Error("speech should not have started")
	}
	if _, ok := s.Recording(16000, 1); ok {
		t.Error("expected no recording")
	}
}

func TestSessionMaxDuration(t *testing.T) {
	s := NewSession(testLimits())

	fed, done := feed(s, 1000, 2000)
	if !done || fed != 312 {
		t.Fatalf("continuous speech ended after %d chunks, want 312", fed)
	}
	rec, ok := s.Recording(16000, 1)
	if !ok || rec.Frames != 312 {
		t.Fatalf("expected a capped recording, got %v", rec)
	}
	if s.Feed(audioio.Constant(1024, 2000)) != true {
		t.Error("Feed after done should report done")
	}
}

func TestSessionMinFrames(t *testing.T) {
	l := testLimits()
	l.SilenceChunks = 2
	s := NewSession(l)

	feed(s, 1, 900)
	_, done := feed(s, 3, 0)
	if !done {
		t.Fatal("expected the session to end")
	}
	if _, ok := s.Recording(16000, 1); ok {
		t.Error("a 4-frame recording should be discarded")
	}
}

func TestSessionSpeechResetsSilence(t *testing.T) {
	l := testLimits()
	l.SilenceChunks = 3
	s := NewSession(l)

	feed(s, 5, 1000)
	feed(s, 3, 0)
	feed(s, 1, 1000) // resets the counter
	if _, done := feed(s, 3, 0); done {
		t.Fatal("silence counter should have been reset by speech")
	}
	if _, done := feed(s, 1, 0); !done {
		t.Fatal("fourth silent chunk should end the session")
	}
}

func TestRecord(t *testing.T) {
	chunks := [][]int16{}
	for i := 0; i < 12; i++ {
		chunks = append(chunks, audioio.Constant(1024, 1000))
	}
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithChunks(chunks...))
	ctx := context.Background()
	if err := src.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	rec, err := Record(ctx, src, testLimits())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	// 12 speech chunks then 32 generated silent ones.
	if rec.Frames != 44 || rec.SampleRate != 16000 || rec.Channels != 1 {
		t.Errorf("recording = %d frames, %d Hz, %d ch", rec.Frames, rec.SampleRate, rec.Channels)
	}
}

func TestRecordSilence(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil)
	ctx := context.Background()
	src.Open(ctx)
	defer src.Close()

	if _, err := Record(ctx, src, testLimits()); !errors.Is(err, ErrNoSpeech) {
		t.Errorf("expected ErrNoSpeech, got %v", err)
	}
	if src.ChunksRead() != 157 {
		t.Errorf("read %d chunks, want 157", src.ChunksRead())
	}
}

func TestRecordCaptureFailure(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithReadError(audioio.ErrCaptureFailure))
	ctx := context.Background()
	src.Open(ctx)

	if _, err := Record(ctx, src, testLimits()); !errors.Is(err, audioio.ErrCaptureFailure) {
		t.Errorf("expected ErrCaptureFailure, got %v", err)
	}
}

func TestRecordCancelled(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithPacing())
	ctx, cancel := context.WithCancel(context.Background())
	src.Open(ctx)

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	if _, err := Record(ctx, src, testLimits()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
