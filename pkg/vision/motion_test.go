package vision

import (
	"errors"
	"testing"
	"time"
)

type differFunc func(prev, cur Frame, pixelThreshold uint8, iterations int) (int, error)

func (f differFunc) Changed(prev, cur Frame, pixelThreshold uint8, iterations int) (int, error) {
	return f(prev, cur, pixelThreshold, iterations)
}

func TestMotionCooldownTimeline(t *testing.T) {
	d := NewMockDiffer(10000, 10000, 10000)
	m := NewMotionTrigger(DefaultConfig(), d)

	if _, fired, _ := m.Update(GrayFrame(100, 100, 0), 0); fired {
		t.Fatal("seed frame must not fire")
	}
	if d.Calls() != 0 {
		t.Fatal("seed frame must not be compared")
	}

	steps := []struct {
		at   time.Duration
		want bool
	}{
		{0, true},
		{500 * time.Millisecond, false},
		{1300 * time.Millisecond, true},
	}
	for _, s := range steps {
		count, fired, err := m.Update(GrayFrame(100, 100, 255), s.at)
		if err != nil {
			t.Fatal(err)
		}
		if count != 10000 {
			t.Errorf("at %v: count = %d, want 10000", s.at, count)
		}
		if fired != s.want {
			t.Errorf("at %v: fired = %v, want %v", s.at, fired, s.want)
		}
	}
}

func TestMotionThresholdIsExclusive(t *testing.T) {
	cfg := DefaultConfig()
	d := NewMockDiffer(cfg.MotionThreshold, cfg.MotionThreshold+1)
	m := NewMotionTrigger(cfg, d)
	m.Update(GrayFrame(10, 10, 0), 0)

	if _, fired, _ := m.Update(GrayFrame(10, 10, 0), time.Second); fired {
		t.Error("a count equal to MotionThreshold must not fire")
	}
	if _, fired, _ := m.Update(GrayFrame(10, 10, 0), 2*time.Second); !fired {
		t.Error("a count above MotionThreshold must fire")
	}
}

func TestMotionPassesDetectorSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PixelThreshold = 40
	cfg.DilateIterations = 3
	d := NewMockDiffer()
	m := NewMotionTrigger(cfg, d)

	m.Update(GrayFrame(10, 10, 0), 0)
	m.Update(GrayFrame(10, 10, 0), 0)
	if d.threshold != 40 || d.iterations != 3 {
		t.Errorf("differ called with threshold %d iterations %d", d.threshold, d.iterations)
	}
}

func TestMotionComparesAgainstPreviousFrame(t *testing.T) {
	var prevs []byte
	d := differFunc(func(prev, cur Frame, _ uint8, _ int) (int, error) {
		prevs = append(prevs, prev.Gray[0])
		return 0, nil
	})
	m := NewMotionTrigger(DefaultConfig(), d)

	seed := GrayFrame(4, 4, 10)
	m.Update(seed, 0)
	// The camera may reuse its buffer; the trigger keeps its own copy.
	seed.Gray[0] = 99

	m.Update(GrayFrame(4, 4, 20), 0)
	m.Update(GrayFrame(4, 4, 30), 0)
	if len(prevs) != 2 || prevs[0] != 10 || prevs[1] != 20 {
		t.Errorf("previous frames = %v, want [10 20]", prevs)
	}
}

func TestMotionReseedsOnSizeChange(t *testing.T) {
	d := NewMockDiffer(1600)
	m := NewMotionTrigger(DefaultConfig(), d)
	m.Update(GrayFrame(100, 100, 0), 0)

	if count, fired, _ := m.Update(GrayFrame(40, 40, 255), time.Second); count != 0 || fired {
		t.Errorf("size change should reseed, got count=%d fired=%v", count, fired)
	}
	if d.Calls() != 0 {
		t.Errorf("differ called %d times across a size change", d.Calls())
	}
	count, fired, _ := m.Update(GrayFrame(40, 40, 0), 2*time.Second)
	if count != 1600 || fired {
		t.Errorf("count = %d fired = %v, want 1600 false", count, fired)
	}
}

func TestMotionReset(t *testing.T) {
	d := NewMockDiffer(10000, 10000)
	m := NewMotionTrigger(DefaultConfig(), d)
	m.Update(GrayFrame(100, 100, 0), 0)
	m.Update(GrayFrame(100, 100, 255), 0)

	m.Reset()
	if _, fired, _ := m.Update(GrayFrame(100, 100, 0), 100*time.Millisecond); fired {
		t.Error("first frame after Reset must only seed")
	}
	// Cooldown is forgotten too.
	if _, fired, _ := m.Update(GrayFrame(100, 100, 255), 200*time.Millisecond); !fired {
		t.Error("expected a trigger after Reset")
	}
}

func TestMotionDifferError(t *testing.T) {
	d := NewMockDiffer(0, 10000)
	m := NewMotionTrigger(DefaultConfig(), d)
	m.Update(GrayFrame(10, 10, 0), 0)

	d.SetError(errors.New("bad mat"))
	if _, fired, err := m.Update(GrayFrame(10, 10, 255), 0); err == nil || fired {
		t.Errorf("fired = %v err = %v, want the differ error", fired, err)
	}

	d.SetError(nil)
	if _, fired, err := m.Update(GrayFrame(10, 10, 0), time.Second); err != nil || fired {
		t.Errorf("after recovery: fired = %v err = %v", fired, err)
	}
}

func TestMotionIgnoresShortFrames(t *testing.T) {
	d := NewMockDiffer()
	m := NewMotionTrigger(DefaultConfig(), d)
	short := Frame{Width: 100, Height: 100, Gray: make([]byte, 10)}
	if count, fired, err := m.Update(short, 0); count != 0 || fired || err != nil {
		t.Error("undersized buffer must be ignored")
	}
	if d.Calls() != 0 {
		t.Error("undersized buffer reached the differ")
	}
}
