package vision

import (
	"math"
	"time"
)

// WaveTracker counts direction reversals of an open hand's wrist and fires
// once enough of them arrive close together.
type WaveTracker struct {
	cfg Config

	hasPrev        bool
	prevX          float64
	direction      int // -1, 0 or 1
	inflections    int
	lastInflection time.Duration
	triggered      bool
	lastWave       time.Duration
}

// NewWaveTracker creates an idle tracker.
func NewWaveTracker(cfg Config) *WaveTracker {
	return &WaveTracker{cfg: cfg}
}

// Update feeds the hands seen in one frame and reports whether a wave fired.
// Only the first hand is tracked.
func (w *WaveTracker) Update(hands []Hand, now time.Duration) bool {
	if len(hands) == 0 {
		w.Reset()
		return false
	}
	hand := &hands[0]
	wristX := hand.Landmarks[Wrist].X

	if hand.OpenFingers() < w.cfg.MinOpenFingers {
		w.direction = 0
		w.inflections = 0
		w.hasPrev = false
		return false
	}

	if w.direction != 0 && now-w.lastInflection > w.cfg.WaveTimeout {
		w.direction = 0
		w.inflections = 0
	}

	if w.hasPrev {
		dx := wristX - w.prevX
		if math.Abs(dx) > w.cfg.MovementThreshold {
			dir := 1
			if dx < 0 {
				dir = -1
			}
			switch {
			case w.direction == 0:
				w.lastInflection = now
			case dir != w.direction:
				w.inflections++
				w.lastInflection = now
			}
			w.direction = dir
		}
	}
	w.prevX = wristX
	w.hasPrev = true

	if w.inflections < w.cfg.WaveInflections {
		return false
	}
	if w.triggered && now-w.lastWave < w.cfg.WaveCooldown {
		return false
	}
	w.inflections = 0
	w.triggered = true
	w.lastWave = now
	return true
}

// Inflections returns the reversals counted toward the current wave.
func (w *WaveTracker) Inflections() int {
	return w.inflections
}

// Reset clears all tracker state, including the cooldown.
func (w *WaveTracker) Reset() {
	*w = WaveTracker{cfg: w.cfg}
}
