package vision

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// StrategyName selects the detector variant.
type StrategyName string

const (
	StrategyMotion StrategyName = "motion"
	StrategyWave   StrategyName = "wave"
	StrategyBoth   StrategyName = "both"
)

// ParseStrategy parses a strategy name. Matching is case-insensitive.
func ParseStrategy(s string) (StrategyName, error) {
	switch n := StrategyName(strings.ToLower(strings.TrimSpace(s))); n {
	case StrategyMotion, StrategyWave, StrategyBoth:
		return n, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// NeedsLandmarks reports whether the strategy runs hand landmark detection.
func (n StrategyName) NeedsLandmarks() bool {
	return n == StrategyWave || n == StrategyBoth
}

// NeedsDiffer reports whether the strategy runs frame-difference motion.
func (n StrategyName) NeedsDiffer() bool {
	return n == StrategyMotion || n == StrategyBoth
}

// Config holds the camera loop and detector settings.
type Config struct {
	Strategy      StrategyName
	FrameInterval time.Duration // pause between frames

	// Motion trigger.
	PixelThreshold   uint8 // per-pixel difference that counts as changed
	MotionThreshold  int   // changed pixels needed to fire
	MotionCooldown   time.Duration
	DilateIterations int // 3x3 dilation passes over the change mask

	// Wave tracker.
	MovementThreshold float64       // normalized wrist dx per frame
	WaveTimeout       time.Duration // max gap between inflections
	WaveCooldown      time.Duration
	WaveInflections   int
	MinOpenFingers    int
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:      StrategyMotion,
		FrameInterval: 30 * time.Millisecond,

		PixelThreshold:   25,
		MotionThreshold:  2000,
		MotionCooldown:   1200 * time.Millisecond,
		DilateIterations: 2,

		MovementThreshold: 0.03,
		WaveTimeout:       time.Second,
		WaveCooldown:      2 * time.Second,
		WaveInflections:   2,
		MinOpenFingers:    2,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	if c.FrameInterval < 0 || c.MotionCooldown < 0 || c.WaveCooldown < 0 {
		return errors.New("vision: intervals must not be negative")
	}
	if c.MotionThreshold <= 0 {
		return errors.New("vision: motion threshold must be positive")
	}
	if c.DilateIterations < 0 {
		return errors.New("vision: dilate iterations must not be negative")
	}
	if c.MovementThreshold <= 0 || c.WaveTimeout <= 0 {
		return errors.New("vision: movement threshold and wave timeout must be positive")
	}
	if c.WaveInflections < 1 {
		return errors.New("vision: wave needs at least one inflection")
	}
	if c.MinOpenFingers < 1 || c.MinOpenFingers > len(fingers) {
		return fmt.Errorf("vision: min open fingers must be between 1 and %d", len(fingers))
	}
	return nil
}

// CameraConfig holds capture settings for the OpenCV camera.
type CameraConfig struct {
	Device   int  // video device index
	Width    int  // requested width, 0 keeps the driver default
	Height   int  // requested height, 0 keeps the driver default
	Mirror   bool // flip horizontally so the image matches the viewer
	BlurSize int  // Gaussian kernel for the motion plane, odd
}

// DefaultCameraConfig returns defaults for a USB webcam.
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		Device:   0,
		Width:    640,
		Height:   480,
		Mirror:   true,
		BlurSize: 21,
	}
}

// LandmarkConfig holds hand landmark model settings.
type LandmarkConfig struct {
	ModelPath       string  // ONNX model with NCHW float input
	InputSize       int     // square input side in pixels
	MinScore        float32 // hand presence needed to report a hand
	LandmarksOutput string  // output layer with 21 x,y,z triples in input pixels
	ScoreOutput     string  // output layer with the hand presence score
}

// DefaultLandmarkConfig returns defaults for the single-hand landmark model.
func DefaultLandmarkConfig() LandmarkConfig {
	return LandmarkConfig{
		ModelPath:       "models/hand_landmark.onnx",
		InputSize:       224,
		MinScore:        0.5,
		LandmarksOutput: "Identity",
		ScoreOutput:     "Identity_1",
	}
}
