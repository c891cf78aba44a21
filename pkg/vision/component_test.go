package vision

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-hologram/pkg/protocol"
	"github.com/teslashibe/go-hologram/pkg/task"
)

type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []any
}

func (b *recordingBroadcaster) BroadcastJSON(v any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, v)
	return nil
}

func (b *recordingBroadcaster) messages() []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]any(nil), b.msgs...)
}

// spyStrategy counts calls and fires a motion event on every frame whose
// first pixel is non-zero.
type spyStrategy struct {
	mu      sync.Mutex
	resets  int
	frames  int
	lastNow time.Duration
}

func (s *spyStrategy) Name() StrategyName { return StrategyMotion }

func (s *spyStrategy) Process(_ context.Context, f Frame, now time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.lastNow = now
	if len(f.Gray) > 0 && f.Gray[0] != 0 {
		return []Event{EventMotion}, nil
	}
	return nil, nil
}

func (s *spyStrategy) Reset() {
	s.mu.Lock()
	s.resets++
	s.mu.Unlock()
}

func (s *spyStrategy) counts() (resets, frames int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets, s.frames
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func newTestComponent(t *testing.T, cam Camera, strategy Strategy) (*Component, *recordingBroadcaster) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.FrameInterval = time.Millisecond
	tasks := task.NewManager(context.Background(), nil)
	t.Cleanup(tasks.CancelAll)

	bc := &recordingBroadcaster{}
	c, err := NewComponent(cfg, Deps{Tasks: tasks, Camera: cam, Strategy: strategy, Broadcaster: bc})
	if err != nil {
		t.Fatalf("NewComponent: %v", err)
	}
	return c, bc
}

func TestComponentBroadcastsMotion(t *testing.T) {
	cfg := DefaultConfig()
	strategy, err := NewStrategy(cfg, NewMockDiffer(10000), nil)
	if err != nil {
		t.Fatal(err)
	}
	cam := NewMockCamera(100, 100, WithFrames(
		GrayFrame(100, 100, 255),
		GrayFrame(100, 100, 0),
	))
	c, bc := newTestComponent(t, cam, strategy)

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "a motion event", func() bool { return len(bc.messages()) > 0 })
	waitFor(t, "a few more frames", func() bool { return cam.Reads() > 10 })
	c.Stop(context.Background())

	msgs := bc.messages()
	if len(msgs) != 1 || msgs[0] != protocol.NewAction(protocol.ActionMotionDetected) {
		t.Errorf("messages = %+v, want one motion_detected", msgs)
	}
	if c.Active() || cam.IsOpen() {
		t.Error("Stop should end the loop and release the camera")
	}
	if s := c.Stats(); s.Motions != 1 || s.Frames < 10 || s.Runs != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestComponentStartIsIdempotent(t *testing.T) {
	cam := NewMockCamera(10, 10)
	spy := &spyStrategy{}
	c, _ := newTestComponent(t, cam, spy)
	ctx := context.Background()

	c.Start(ctx)
	waitFor(t, "frames", func() bool { _, n := spy.counts(); return n > 0 })
	c.Start(ctx)

	if cam.Opens() != 1 {
		t.Errorf("camera opened %d times, want 1", cam.Opens())
	}
	if resets, _ := spy.counts(); resets != 1 {
		t.Errorf("strategy reset %d times, want 1", resets)
	}

	c.Stop(ctx)
	if resets, _ := spy.counts(); resets != 2 {
		t.Errorf("Stop should reset the strategy, resets = %d", resets)
	}
	if cam.Closes() != 1 {
		t.Errorf("camera closed %d times, want 1", cam.Closes())
	}

	// Restart after stop opens the camera again.
	c.Start(ctx)
	waitFor(t, "second run", func() bool { return cam.Opens() == 2 && cam.IsOpen() })
	c.Stop(ctx)
}

func TestComponentTimeIsMonotonicOffset(t *testing.T) {
	spy := &spyStrategy{}
	c, _ := newTestComponent(t, NewMockCamera(10, 10), spy)
	c.Start(context.Background())
	waitFor(t, "frames", func() bool { _, n := spy.counts(); return n > 3 })
	c.Stop(context.Background())

	spy.mu.Lock()
	defer spy.mu.Unlock()
	if spy.lastNow <= 0 || spy.lastNow > 5*time.Second {
		t.Errorf("now = %v, want a small positive offset", spy.lastNow)
	}
}

func TestComponentCameraUnavailable(t *testing.T) {
	cam := NewMockCamera(10, 10, WithCameraOpenError(errors.New("no such device")))
	c, bc := newTestComponent(t, cam, &spyStrategy{})

	c.Start(context.Background())
	waitFor(t, "error broadcast", func() bool { return len(bc.messages()) == 1 })
	waitFor(t, "loop exit", func() bool { return !c.Active() })

	if msg := bc.messages()[0]; msg != protocol.NewError("camera unavailable") {
		t.Errorf("message = %+v", msg)
	}
}

func TestComponentCaptureFailureEndsLoop(t *testing.T) {
	cam := NewMockCamera(10, 10,
		WithFrames(GrayFrame(10, 10, 0), GrayFrame(10, 10, 0)),
		WithCameraReadError(errors.New("usb reset")),
	)
	spy := &spyStrategy{}
	c, bc := newTestComponent(t, cam, spy)

	c.Start(context.Background())
	waitFor(t, "loop exit", func() bool { return cam.Opens() == 1 && !c.Active() })

	if cam.IsOpen() {
		t.Error("camera left open after capture failure")
	}
	if _, frames := spy.counts(); frames != 2 {
		t.Errorf("processed %d frames, want 2", frames)
	}
	if len(bc.messages()) != 0 {
		t.Error("capture failure is logged, not broadcast")
	}
}

func TestComponentSurvivesFrameErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = StrategyWave
	lm := NewMockLandmarker()
	lm.SetError(errors.New("model not loaded"))
	strategy, err := NewStrategy(cfg, nil, lm)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := newTestComponent(t, NewMockCamera(10, 10), strategy)

	c.Start(context.Background())
	waitFor(t, "several failed frames", func() bool { return c.Stats().Errors > 3 })
	if !c.Active() {
		t.Error("per-frame errors must not stop the loop")
	}
	c.Stop(context.Background())
}

func TestNewComponentValidates(t *testing.T) {
	if _, err := NewComponent(DefaultConfig(), Deps{}); err == nil {
		t.Error("expected error for missing deps")
	}
	cfg := DefaultConfig()
	cfg.Strategy = "sparkle"
	if _, err := NewComponent(cfg, Deps{}); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}
}
