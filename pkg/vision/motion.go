package vision

import (
	"fmt"
	"time"
)

// MotionTrigger fires when enough pixels change between consecutive frames.
//
// The pixel comparison is delegated to a Differ. The previous frame is
// replaced on every update and reseeded whenever the frame size changes.
// After a trigger, further motion is ignored until MotionCooldown has
// elapsed.
type MotionTrigger struct {
	cfg    Config
	differ Differ

	prev      Frame
	triggered bool
	last      time.Duration
}

// NewMotionTrigger creates a trigger with no previous frame.
func NewMotionTrigger(cfg Config, differ Differ) *MotionTrigger {
	return &MotionTrigger{cfg: cfg, differ: differ}
}

// Update compares f against the previous frame. It returns the number of
// changed pixels and whether the trigger fired.
func (m *MotionTrigger) Update(f Frame, now time.Duration) (int, bool, error) {
	if f.Width <= 0 || f.Height <= 0 || len(f.Gray) < f.Width*f.Height {
		return 0, false, nil
	}
	if m.prev.Gray == nil || f.Width != m.prev.Width || f.Height != m.prev.Height {
		m.seed(f)
		return 0, false, nil
	}

	count, err := m.differ.Changed(m.prev, f, m.cfg.PixelThreshold, m.cfg.DilateIterations)
	copy(m.prev.Gray, f.Gray)
	if err != nil {
		return 0, false, fmt.Errorf("frame difference: %w", err)
	}

	if count <= m.cfg.MotionThreshold {
		return count, false, nil
	}
	if m.triggered && now-m.last < m.cfg.MotionCooldown {
		return count, false, nil
	}
	m.triggered = true
	m.last = now
	return count, true, nil
}

// Reset forgets the previous frame and the cooldown.
func (m *MotionTrigger) Reset() {
	m.prev = Frame{}
	m.triggered = false
	m.last = 0
}

// seed keeps a private copy of the luminance plane; camera buffers may be
// reused by the next read.
func (m *MotionTrigger) seed(f Frame) {
	n := f.Width * f.Height
	gray := make([]byte, n)
	copy(gray, f.Gray[:n])
	m.prev = Frame{Width: f.Width, Height: f.Height, Gray: gray}
}
