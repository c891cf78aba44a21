// Package vision runs the camera loop and turns frames into motion and wave
// events.
//
// The loop is shared by every detector. A Strategy chosen once at startup
// decides what a frame means: frame-difference motion, landmark-based waving,
// or both. Detectors see time as a monotonic offset from the start of the
// loop, so tests can drive them with synthetic timelines.
package vision

import (
	"context"
	"errors"

	"github.com/teslashibe/go-hologram/pkg/protocol"
)

var (
	// ErrDeviceUnavailable is returned when the camera cannot be opened.
	ErrDeviceUnavailable = errors.New("vision: camera unavailable")

	// ErrCaptureFailure is returned when reading a frame fails.
	ErrCaptureFailure = errors.New("vision: capture failure")

	// ErrUnknownStrategy is returned for a strategy name other than motion, wave or both.
	ErrUnknownStrategy = errors.New("vision: unknown strategy")

	// ErrNoLandmarker is returned when a landmark strategy has no Landmarker.
	ErrNoLandmarker = errors.New("vision: strategy needs a hand landmarker")

	// ErrNoDiffer is returned when a motion strategy has no Differ.
	ErrNoDiffer = errors.New("vision: strategy needs a frame differ")
)

// Event is a detection reported to clients.
type Event string

const (
	EventMotion Event = protocol.ActionMotionDetected
	EventWave   Event = protocol.ActionWave
)

// Frame is one preprocessed camera frame.
type Frame struct {
	Width  int
	Height int

	// Gray is the mirrored, blurred luminance plane, row-major, one byte per pixel.
	Gray []byte

	// BGR is the mirrored colour frame, row-major, three bytes per pixel.
	// Nil when the camera does not provide colour.
	BGR []byte
}

// Camera is a frame source. Open and Close bracket one loop run.
type Camera interface {
	Open(ctx context.Context) error
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// Landmark is a normalized image coordinate; Y grows downwards.
type Landmark struct {
	X, Y, Z float64
}

// Hand landmark indices.
const (
	Wrist     = 0
	IndexPIP  = 6
	IndexTip  = 8
	MiddlePIP = 10
	MiddleTip = 12
	RingPIP   = 14
	RingTip   = 16
	PinkyPIP  = 18
	PinkyTip  = 20

	NumLandmarks = 21
)

// Hand is one detected hand.
type Hand struct {
	Landmarks [NumLandmarks]Landmark
	Score     float64
}

var fingers = [4][2]int{
	{IndexTip, IndexPIP},
	{MiddleTip, MiddlePIP},
	{RingTip, RingPIP},
	{PinkyTip, PinkyPIP},
}

// OpenFingers counts fingertips above their PIP joints.
func (h *Hand) OpenFingers() int {
	n := 0
	for _, f := range fingers {
		if h.Landmarks[f[0]].Y < h.Landmarks[f[1]].Y {
			n++
		}
	}
	return n
}

// Differ counts the pixels that changed between two frames of the same size.
// A pixel changes when its absolute luminance difference exceeds
// pixelThreshold; the change mask is then dilated with a 3x3 kernel
// iterations times before counting.
type Differ interface {
	Changed(prev, cur Frame, pixelThreshold uint8, iterations int) (int, error)
}

// Landmarker finds hands in a frame.
type Landmarker interface {
	Detect(ctx context.Context, f Frame) ([]Hand, error)
}

// Broadcaster sends a message to every connected client.
type Broadcaster interface {
	BroadcastJSON(v any) error
}
