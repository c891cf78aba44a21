// Package config loads the hologram server configuration.
//
// Values are layered, later sources winning:
//
//	Default() → TOML file (--config) → .env file → environment → flags
//
// Each section maps onto the Config type of the package that consumes it
// (voice.Config, vision.Config, mode.Config, ...), so those packages never
// see the file format.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/teslashibe/go-hologram/pkg/audioio"
	"github.com/teslashibe/go-hologram/pkg/mode"
	"github.com/teslashibe/go-hologram/pkg/stt"
	"github.com/teslashibe/go-hologram/pkg/vision"
	"github.com/teslashibe/go-hologram/pkg/voice"
)

// Duration is a time.Duration written as a Go duration string ("1.2s") in
// TOML.
type Duration struct {
	time.Duration
}

// D wraps d.
func D(d time.Duration) Duration {
	return Duration{d}
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Camera backends.
const (
	CameraDevice = "device"
	CameraMock   = "mock"
)

// Config is the complete server configuration.
type Config struct {
	LogLevel  string    `toml:"log_level"`
	Server    Server    `toml:"server"`
	Mode      Mode      `toml:"mode"`
	Voice     Voice     `toml:"voice"`
	Vision    Vision    `toml:"vision"`
	Audio     Audio     `toml:"audio"`
	Filter    Filter    `toml:"filter"`
	Providers Providers `toml:"providers"`
}

// Server configures the HTTP and websocket listener.
type Server struct {
	Host string `toml:"host"`
	Port int    `toml:"port"` // 0 picks a free port

	// PublicURL prefixes audio links sent to clients. Empty means
	// http://host:port.
	PublicURL string `toml:"public_url"`
}

// Mode configures the mode controller.
type Mode struct {
	GracePeriod Duration `toml:"grace_period"`
}

// Voice configures microphone capture and the voice loop.
type Voice struct {
	Backend    string `toml:"backend"` // auto, portaudio or mock
	SampleRate int    `toml:"sample_rate"`
	Channels   int    `toml:"channels"`
	ChunkSize  int    `toml:"chunk_size"`

	SilenceThreshold   float64  `toml:"silence_threshold"`
	MinEnergyThreshold float64  `toml:"min_energy_threshold"`
	SilenceDuration    Duration `toml:"silence_duration"`
	MaxWait            Duration `toml:"max_wait"`
	MaxDuration        Duration `toml:"max_duration"`
	MinFrames          int      `toml:"min_frames"`
	RetryDelay         Duration `toml:"retry_delay"`

	Language string `toml:"language"`
	Greeting string `toml:"greeting"`
}

// Vision configures the camera and the detector.
type Vision struct {
	Strategy      string   `toml:"strategy"` // motion, wave or both
	Backend       string   `toml:"backend"`  // device or mock
	FrameInterval Duration `toml:"frame_interval"`

	PixelThreshold   int      `toml:"pixel_threshold"`
	MotionThreshold  int      `toml:"motion_threshold"`
	MotionCooldown   Duration `toml:"motion_cooldown"`
	DilateIterations int      `toml:"dilate_iterations"`

	MovementThreshold float64  `toml:"movement_threshold"`
	WaveTimeout       Duration `toml:"wave_timeout"`
	WaveCooldown      Duration `toml:"wave_cooldown"`
	MinOpenFingers    int      `toml:"min_open_fingers"`

	Device        int    `toml:"device"`
	Width         int    `toml:"width"`
	Height        int    `toml:"height"`
	Mirror        bool   `toml:"mirror"`
	LandmarkModel string `toml:"landmark_model"`
}

// Audio configures the directory recordings and replies are written to.
type Audio struct {
	Dir             string   `toml:"dir"`
	Retention       Duration `toml:"retention"`
	JanitorInterval Duration `toml:"janitor_interval"`
}

// Filter configures the profanity filter.
type Filter struct {
	WordsFile string `toml:"words_file"`
}

// Providers configures the cloud speech and generation services. API keys
// only come from the environment.
type Providers struct {
	GeminiModel     string   `toml:"gemini_model"`
	OpenAIModel     string   `toml:"openai_model"`
	WhisperModel    string   `toml:"whisper_model"`
	ElevenLabsVoice string   `toml:"elevenlabs_voice"`
	OpenAIVoice     string   `toml:"openai_voice"`
	Timeout         Duration `toml:"timeout"`

	GeminiAPIKey     string `toml:"-"`
	OpenAIAPIKey     string `toml:"-"`
	ElevenLabsAPIKey string `toml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	vc := voice.DefaultConfig()
	ac := audioio.DefaultConfig()
	vis := vision.DefaultConfig()
	cam := vision.DefaultCameraConfig()
	lm := vision.DefaultLandmarkConfig()
	sc := stt.DefaultConfig()

	return &Config{
		LogLevel: "info",
		Server: Server{
			Host: "localhost",
			Port: 8765,
		},
		Mode: Mode{GracePeriod: D(mode.DefaultGracePeriod)},
		Voice: Voice{
			Backend:            string(ac.Backend),
			SampleRate:         vc.SampleRate,
			Channels:           vc.Channels,
			ChunkSize:          vc.ChunkSize,
			SilenceThreshold:   vc.SilenceThreshold,
			MinEnergyThreshold: vc.MinEnergyThreshold,
			SilenceDuration:    D(vc.SilenceDuration),
			MaxWait:            D(vc.MaxWait),
			MaxDuration:        D(vc.MaxDuration),
			MinFrames:          vc.MinFrames,
			RetryDelay:         D(vc.RetryDelay),
			Language:           sc.Language,
		},
		Vision: Vision{
			Strategy:          string(vis.Strategy),
			Backend:           CameraDevice,
			FrameInterval:     D(vis.FrameInterval),
			PixelThreshold:    int(vis.PixelThreshold),
			MotionThreshold:   vis.MotionThreshold,
			MotionCooldown:    D(vis.MotionCooldown),
			DilateIterations:  vis.DilateIterations,
			MovementThreshold: vis.MovementThreshold,
			WaveTimeout:       D(vis.WaveTimeout),
			WaveCooldown:      D(vis.WaveCooldown),
			MinOpenFingers:    vis.MinOpenFingers,
			Device:            cam.Device,
			Width:             cam.Width,
			Height:            cam.Height,
			Mirror:            cam.Mirror,
			LandmarkModel:     lm.ModelPath,
		},
		Audio: Audio{
			Dir:             ".audio_cache",
			Retention:       D(10 * time.Minute),
			JanitorInterval: D(time.Minute),
		},
		Filter: Filter{WordsFile: "blocked_words.txt"},
		Providers: Providers{
			WhisperModel: sc.Model,
			Timeout:      D(30 * time.Second),
		},
	}
}

// LoadFile merges a TOML file over c. Unknown keys are rejected so typos do
// not silently fall back to defaults.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return c.Decode(f)
}

// Decode merges TOML from r over c.
func (c *Config) Decode(r io.Reader) error {
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config: %s", strict.String())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// WriteTOML writes the effective configuration. API keys are never written.
func (c *Config) WriteTOML(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(c)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// PublicURL returns the base URL clients fetch audio from.
func (c *Config) PublicURL() string {
	if c.Server.PublicURL != "" {
		return strings.TrimSuffix(c.Server.PublicURL, "/")
	}
	return "http://" + c.Addr()
}

// Validate reports every problem with the configuration.
func (c *Config) Validate() []error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Mode.GracePeriod.Duration < 0 {
		errs = append(errs, errors.New("mode.grace_period must not be negative"))
	}

	switch audioio.Backend(c.Voice.Backend) {
	case audioio.BackendAuto, audioio.BackendPortAudio, audioio.BackendMock:
	default:
		errs = append(errs, fmt.Errorf("voice.backend: unsupported backend %q", c.Voice.Backend))
	}
	vc := c.VoiceConfig()
	if err := vc.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.Vision.Backend {
	case CameraDevice, CameraMock:
	default:
		errs = append(errs, fmt.Errorf("vision.backend: unsupported backend %q", c.Vision.Backend))
	}
	if c.Vision.PixelThreshold < 0 || c.Vision.PixelThreshold > 255 {
		errs = append(errs, fmt.Errorf("vision.pixel_threshold must be 0-255, got %d", c.Vision.PixelThreshold))
	}
	vis := c.VisionConfig()
	if err := vis.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Audio.Dir == "" {
		errs = append(errs, errors.New("audio.dir is required"))
	}
	if c.Audio.Retention.Duration <= 0 || c.Audio.JanitorInterval.Duration <= 0 {
		errs = append(errs, errors.New("audio.retention and audio.janitor_interval must be positive"))
	}
	if c.Providers.Timeout.Duration <= 0 {
		errs = append(errs, errors.New("providers.timeout must be positive"))
	}
	return errs
}

// ModeConfig returns the mode controller settings.
func (c *Config) ModeConfig() mode.Config {
	return mode.Config{GracePeriod: c.Mode.GracePeriod.Duration}
}

// VoiceConfig returns the voice loop settings.
func (c *Config) VoiceConfig() voice.Config {
	vc := voice.DefaultConfig()
	vc.SampleRate = c.Voice.SampleRate
	vc.Channels = c.Voice.Channels
	vc.ChunkSize = c.Voice.ChunkSize
	vc.SilenceThreshold = c.Voice.SilenceThreshold
	vc.MinEnergyThreshold = c.Voice.MinEnergyThreshold
	vc.SilenceDuration = c.Voice.SilenceDuration.Duration
	vc.MaxWait = c.Voice.MaxWait.Duration
	vc.MaxDuration = c.Voice.MaxDuration.Duration
	vc.MinFrames = c.Voice.MinFrames
	vc.RetryDelay = c.Voice.RetryDelay.Duration
	if c.Voice.Greeting != "" {
		vc.Greeting = c.Voice.Greeting
	}
	return vc
}

// AudioConfig returns the microphone settings.
func (c *Config) AudioConfig() audioio.Config {
	vc := c.VoiceConfig()
	ac := vc.AudioConfig()
	ac.Backend = audioio.Backend(c.Voice.Backend)
	return ac
}

// VisionConfig returns the detector settings.
func (c *Config) VisionConfig() vision.Config {
	vc := vision.DefaultConfig()
	vc.Strategy = vision.StrategyName(strings.ToLower(strings.TrimSpace(c.Vision.Strategy)))
	vc.FrameInterval = c.Vision.FrameInterval.Duration
	vc.PixelThreshold = uint8(min(max(c.Vision.PixelThreshold, 0), 255))
	vc.MotionThreshold = c.Vision.MotionThreshold
	vc.MotionCooldown = c.Vision.MotionCooldown.Duration
	vc.DilateIterations = c.Vision.DilateIterations
	vc.MovementThreshold = c.Vision.MovementThreshold
	vc.WaveTimeout = c.Vision.WaveTimeout.Duration
	vc.WaveCooldown = c.Vision.WaveCooldown.Duration
	vc.MinOpenFingers = c.Vision.MinOpenFingers
	return vc
}

// CameraConfig returns the capture device settings.
func (c *Config) CameraConfig() vision.CameraConfig {
	cc := vision.DefaultCameraConfig()
	cc.Device = c.Vision.Device
	cc.Width = c.Vision.Width
	cc.Height = c.Vision.Height
	cc.Mirror = c.Vision.Mirror
	return cc
}

// LandmarkConfig returns the hand landmark model settings.
func (c *Config) LandmarkConfig() vision.LandmarkConfig {
	lc := vision.DefaultLandmarkConfig()
	lc.ModelPath = c.Vision.LandmarkModel
	return lc
}

// WhisperConfig returns the transcriber settings.
func (c *Config) WhisperConfig() stt.Config {
	sc := stt.DefaultConfig()
	sc.APIKey = c.Providers.OpenAIAPIKey
	sc.Language = c.Voice.Language
	sc.Timeout = c.Providers.Timeout.Duration
	if c.Providers.WhisperModel != "" {
		sc.Model = c.Providers.WhisperModel
	}
	return sc
}
