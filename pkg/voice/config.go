package voice

import (
	"errors"
	"time"

	"github.com/teslashibe/go-hologram/pkg/audioio"
)

// Canned replies.
const (
	DefaultGreeting = "Merhaba! Ben buradayım!"
	DefaultRefusal  = "Lütfen saygı kurallarına uy."
	DefaultApology  = "Hata oluştu, tekrar deneyebilir misin?"
)

// Config holds all tunable parameters for the voice loop.
type Config struct {
	// Audio format handed to the transcriber.
	SampleRate int
	Channels   int
	ChunkSize  int

	// Recording (energy VAD) settings, RMS on the int16 scale.
	SilenceThreshold   float64       // chunk counts as silent below this
	MinEnergyThreshold float64       // speech starts above this
	SilenceDuration    time.Duration // trailing silence that ends a recording
	MaxWait            time.Duration // give up if nobody speaks
	MaxDuration        time.Duration // hard cap per recording
	MinFrames          int           // shorter recordings are discarded

	// Turn pacing.
	RetryDelay       time.Duration // pause after an empty turn
	DeviceRetryDelay time.Duration // pause before reopening a failed microphone
	WordDuration     time.Duration // estimated playback time per word
	SpeakPadding     time.Duration // added to the playback estimate

	// Replies.
	Greeting string
	Refusal  string
	Apology  string
}

// DefaultConfig returns the defaults tuned for a 16kHz USB microphone.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		Channels:   1,
		ChunkSize:  1024,

		SilenceThreshold:   300,
		MinEnergyThreshold: 500,
		SilenceDuration:    2 * time.Second,
		MaxWait:            10 * time.Second,
		MaxDuration:        20 * time.Second,
		MinFrames:          10,

		RetryDelay:       500 * time.Millisecond,
		DeviceRetryDelay: 2 * time.Second,
		WordDuration:     600 * time.Millisecond,
		SpeakPadding:     3 * time.Second,

		Greeting: DefaultGreeting,
		Refusal:  DefaultRefusal,
		Apology:  DefaultApology,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 || c.ChunkSize <= 0 || c.Channels <= 0 {
		return errors.New("voice: sample rate, channels and chunk size must be positive")
	}
	if c.SilenceThreshold < 0 || c.MinEnergyThreshold < 0 {
		return errors.New("voice: energy thresholds must not be negative")
	}
	if c.MinEnergyThreshold < c.SilenceThreshold {
		return errors.New("voice: min energy threshold must be at least the silence threshold")
	}
	if c.MaxDuration <= 0 || c.MaxWait <= 0 || c.SilenceDuration <= 0 {
		return errors.New("voice: recording durations must be positive")
	}
	if c.Greeting == "" || c.Refusal == "" || c.Apology == "" {
		return errors.New("voice: canned replies must not be empty")
	}
	return nil
}

// AudioConfig returns the capture settings for the microphone.
func (c *Config) AudioConfig() audioio.Config {
	cfg := audioio.DefaultConfig()
	cfg.SampleRate = c.SampleRate
	cfg.Channels = c.Channels
	cfg.ChunkSize = c.ChunkSize
	return cfg
}

// Limits converts the recording durations into chunk counts.
func (c *Config) Limits() Limits {
	ac := c.AudioConfig()
	return Limits{
		SilenceThreshold:   c.SilenceThreshold,
		MinEnergyThreshold: c.MinEnergyThreshold,
		SilenceChunks:      ac.ChunksFor(c.SilenceDuration),
		MaxWaitChunks:      ac.ChunksFor(c.MaxWait),
		MaxChunks:          ac.ChunksFor(c.MaxDuration),
		MinFrames:          c.MinFrames,
	}
}

// SpeakingTime estimates how long clients need to play a reply.
func (c *Config) SpeakingTime(words int) time.Duration {
	return time.Duration(words)*c.WordDuration + c.SpeakPadding
}
