package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every override variable, e.g. HOLOGRAM_PORT.
const EnvPrefix = "HOLOGRAM_"

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Flags are the command-line overrides. Only flags the user actually set
// replace file and environment values.
type Flags struct {
	fs *pflag.FlagSet

	ConfigFile string
	EnvFile    string
	PrintOnly  bool

	logLevel      string
	host          string
	port          int
	publicURL     string
	grace         time.Duration
	strategy      string
	audioBackend  string
	cameraBackend string
	cameraDevice  int
	audioDir      string
	wordsFile     string
	landmarkModel string
}

// NewFlags registers the server flags on a new flag set.
func NewFlags(name string) *Flags {
	d := Default()
	f := &Flags{fs: pflag.NewFlagSet(name, pflag.ContinueOnError)}

	f.fs.StringVarP(&f.ConfigFile, "config", "c", "", "TOML config file")
	f.fs.StringVarP(&f.EnvFile, "env", "e", ".env", "env file with API keys")
	f.fs.BoolVar(&f.PrintOnly, "print-config", false, "print the effective config and exit")

	f.fs.StringVarP(&f.logLevel, "log", "l", d.LogLevel, "log level (debug, info, warn, error)")
	f.fs.StringVar(&f.host, "host", d.Server.Host, "listen host")
	f.fs.IntVarP(&f.port, "port", "p", d.Server.Port, "listen port")
	f.fs.StringVar(&f.publicURL, "public-url", "", "base URL for audio links (default http://host:port)")
	f.fs.DurationVar(&f.grace, "grace", d.Mode.GracePeriod.Duration, "teardown delay after the last client leaves")
	f.fs.StringVarP(&f.strategy, "strategy", "s", d.Vision.Strategy, "vision strategy (motion, wave, both)")
	f.fs.StringVar(&f.audioBackend, "audio-backend", d.Voice.Backend, "microphone backend (auto, portaudio, mock)")
	f.fs.StringVar(&f.cameraBackend, "camera-backend", d.Vision.Backend, "camera backend (device, mock)")
	f.fs.IntVar(&f.cameraDevice, "camera", d.Vision.Device, "camera device index")
	f.fs.StringVar(&f.audioDir, "audio-dir", d.Audio.Dir, "directory for recordings and replies")
	f.fs.StringVar(&f.wordsFile, "blocked-words", d.Filter.WordsFile, "profanity word list")
	f.fs.StringVar(&f.landmarkModel, "landmark-model", d.Vision.LandmarkModel, "hand landmark ONNX model")
	return f
}

// FlagSet exposes the underlying flag set, e.g. for usage output.
func (f *Flags) FlagSet() *pflag.FlagSet {
	return f.fs
}

// Parse parses command-line arguments (without the program name).
func (f *Flags) Parse(args []string) error {
	return f.fs.Parse(args)
}

func (f *Flags) apply(c *Config) {
	set := func(name string, fn func()) {
		if f.fs.Changed(name) {
			fn()
		}
	}
	set("log", func() { c.LogLevel = f.logLevel })
	set("host", func() { c.Server.Host = f.host })
	set("port", func() { c.Server.Port = f.port })
	set("public-url", func() { c.Server.PublicURL = f.publicURL })
	set("grace", func() { c.Mode.GracePeriod = D(f.grace) })
	set("strategy", func() { c.Vision.Strategy = f.strategy })
	set("audio-backend", func() { c.Voice.Backend = f.audioBackend })
	set("camera-backend", func() { c.Vision.Backend = f.cameraBackend })
	set("camera", func() { c.Vision.Device = f.cameraDevice })
	set("audio-dir", func() { c.Audio.Dir = f.audioDir })
	set("blocked-words", func() { c.Filter.WordsFile = f.wordsFile })
	set("landmark-model", func() { c.Vision.LandmarkModel = f.landmarkModel })
}

// Load parses args with the server flags and builds the layered
// configuration. It does not validate; call Validate on the result.
func Load(args []string, lookup LookupFunc) (*Config, *Flags, error) {
	f := NewFlags("hologram")
	c, err := f.Load(args, lookup)
	return c, f, err
}

// Load parses args and builds the layered configuration. Tools register
// their own flags on FlagSet before calling it.
func (f *Flags) Load(args []string, lookup LookupFunc) (*Config, error) {
	if err := f.Parse(args); err != nil {
		return nil, err
	}

	c := Default()
	if f.ConfigFile != "" {
		if err := c.LoadFile(f.ConfigFile); err != nil {
			return nil, err
		}
	}

	// A missing .env is normal in production, where keys come from the
	// environment.
	if f.EnvFile != "" {
		if err := godotenv.Load(f.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	if err := c.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	f.apply(c)
	return c, nil
}

// ApplyEnv overrides c from HOLOGRAM_* variables and reads provider API keys.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			return
		}
		*dst = n
	}
	dur := func(key string, dst *Duration) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		if err := dst.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		}
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("HOST", &c.Server.Host)
	num("PORT", &c.Server.Port)
	str("PUBLIC_URL", &c.Server.PublicURL)
	dur("GRACE_PERIOD", &c.Mode.GracePeriod)
	str("AUDIO_BACKEND", &c.Voice.Backend)
	str("LANGUAGE", &c.Voice.Language)
	str("VISION_STRATEGY", &c.Vision.Strategy)
	str("CAMERA_BACKEND", &c.Vision.Backend)
	num("CAMERA_DEVICE", &c.Vision.Device)
	str("LANDMARK_MODEL", &c.Vision.LandmarkModel)
	str("AUDIO_DIR", &c.Audio.Dir)
	dur("AUDIO_RETENTION", &c.Audio.Retention)
	str("BLOCKED_WORDS", &c.Filter.WordsFile)

	key := func(dst *string, names ...string) {
		for _, name := range names {
			if v, ok := lookup(name); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	key(&c.Providers.GeminiAPIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	key(&c.Providers.OpenAIAPIKey, "OPENAI_API_KEY")
	key(&c.Providers.ElevenLabsAPIKey, "ELEVENLABS_API_KEY")
	key(&c.Providers.ElevenLabsVoice, "ELEVENLABS_VOICE_ID")

	return errors.Join(errs...)
}
