// Package mode owns the exclusive VISION / VOICE perception mode.
//
// The Controller is the only writer of the current mode. It stops the outgoing
// pipeline (waiting for its task to return and release its device) before
// starting the incoming one, so camera and microphone loops never overlap.
package mode

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode is the active perception pipeline.
type Mode string

const (
	None   Mode = "NONE"
	Vision Mode = "VISION"
	Voice  Mode = "VOICE"
)

// ErrUnknownMode is returned for a mode value other than VISION or VOICE.
var ErrUnknownMode = errors.New("mode: unknown mode")

// ParseMode parses a client mode value. Matching is case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case Vision:
		return Vision, nil
	case Voice:
		return Voice, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

func (m Mode) String() string {
	return string(m)
}

// DefaultGracePeriod is how long the active mode survives after the last
// client disconnects.
const DefaultGracePeriod = 5 * time.Second

// Config configures the Controller.
type Config struct {
	// GracePeriod before teardown once no clients remain. Zero tears down
	// immediately.
	GracePeriod time.Duration
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{GracePeriod: DefaultGracePeriod}
}
