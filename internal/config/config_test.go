package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-hologram/pkg/audioio"
	"github.com/teslashibe/go-hologram/pkg/vision"
)

func env(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if errs := c.Validate(); len(errs) != 0 {
		t.Fatalf("Validate() = %v", errs)
	}
	if c.Addr() != "localhost:8765" {
		t.Errorf("Addr() = %q", c.Addr())
	}
	if c.PublicURL() != "http://localhost:8765" {
		t.Errorf("PublicURL() = %q", c.PublicURL())
	}
	if c.ModeConfig().GracePeriod != 5*time.Second {
		t.Errorf("grace = %v, want 5s", c.ModeConfig().GracePeriod)
	}
	if c.Audio.Retention.Duration != 10*time.Minute {
		t.Errorf("retention = %v, want 10m", c.Audio.Retention)
	}
	if c.VisionConfig() != vision.DefaultConfig() {
		t.Errorf("VisionConfig() = %+v, want defaults", c.VisionConfig())
	}
	if c.WhisperConfig().Language != "tr" {
		t.Errorf("language = %q, want tr", c.WhisperConfig().Language)
	}
}

func TestDecode(t *testing.T) {
	src := `
log_level = "debug"

[server]
port = 9000
public_url = "https://holo.example.com/"

[mode]
grace_period = "2.5s"

[voice]
backend = "mock"
silence_duration = "1500ms"
min_frames = 4

[vision]
strategy = "Both"
motion_cooldown = "800ms"
pixel_threshold = 30
`
	c := Default()
	if err := c.Decode(strings.NewReader(src)); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if c.LogLevel != "debug" || c.Server.Port != 9000 {
		t.Errorf("got log=%q port=%d", c.LogLevel, c.Server.Port)
	}
	if c.Server.Host != "localhost" {
		t.Errorf("unset host should keep default, got %q", c.Server.Host)
	}
	if c.PublicURL() != "https://holo.example.com" {
		t.Errorf("PublicURL() = %q", c.PublicURL())
	}
	if c.ModeConfig().GracePeriod != 2500*time.Millisecond {
		t.Errorf("grace = %v", c.ModeConfig().GracePeriod)
	}

	vc := c.VoiceConfig()
	if vc.SilenceDuration != 1500*time.Millisecond || vc.MinFrames != 4 {
		t.Errorf("voice = %+v", vc)
	}
	if c.AudioConfig().Backend != audioio.BackendMock {
		t.Errorf("audio backend = %q", c.AudioConfig().Backend)
	}

	vis := c.VisionConfig()
	if vis.Strategy != vision.StrategyBoth || vis.MotionCooldown != 800*time.Millisecond || vis.PixelThreshold != 30 {
		t.Errorf("vision = %+v", vis)
	}
	if errs := c.Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v", errs)
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	c := Default()
	err := c.Decode(strings.NewReader("[vision]\nstrategi = \"wave\"\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "strategi") {
		t.Errorf("error should name the key: %v", err)
	}
}

func TestDecodeRejectsBadDuration(t *testing.T) {
	c := Default()
	if err := c.Decode(strings.NewReader("[mode]\ngrace_period = \"soon\"\n")); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"grace", func(c *Config) { c.Mode.GracePeriod = D(-time.Second) }},
		{"audio backend", func(c *Config) { c.Voice.Backend = "alsa" }},
		{"voice thresholds", func(c *Config) { c.Voice.MinEnergyThreshold = 100 }},
		{"camera backend", func(c *Config) { c.Vision.Backend = "ip" }},
		{"strategy", func(c *Config) { c.Vision.Strategy = "blink" }},
		{"pixel threshold", func(c *Config) { c.Vision.PixelThreshold = 300 }},
		{"audio dir", func(c *Config) { c.Audio.Dir = "" }},
		{"retention", func(c *Config) { c.Audio.Retention = D(0) }},
		{"timeout", func(c *Config) { c.Providers.Timeout = D(0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			if errs := c.Validate(); len(errs) == 0 {
				t.Error("expected validation error")
			}
		})
	}

	c := Default()
	c.Server.Port = -1
	c.Audio.Dir = ""
	if errs := c.Validate(); len(errs) != 2 {
		t.Errorf("expected every problem reported, got %v", errs)
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(env(map[string]string{
		"HOLOGRAM_PORT":            "7000",
		"HOLOGRAM_GRACE_PERIOD":    "0s",
		"HOLOGRAM_VISION_STRATEGY": "wave",
		"HOLOGRAM_HOST":            "",
		"GOOGLE_API_KEY":           "google",
		"OPENAI_API_KEY":           "openai",
		"ELEVENLABS_API_KEY":       "eleven",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if c.Server.Port != 7000 || c.Mode.GracePeriod.Duration != 0 || c.Vision.Strategy != "wave" {
		t.Errorf("overrides not applied: %+v", c)
	}
	if c.Server.Host != "localhost" {
		t.Errorf("empty variable should be ignored, host = %q", c.Server.Host)
	}
	if c.Providers.GeminiAPIKey != "google" || c.Providers.OpenAIAPIKey != "openai" || c.Providers.ElevenLabsAPIKey != "eleven" {
		t.Errorf("keys = %+v", c.Providers)
	}
	if c.WhisperConfig().APIKey != "openai" {
		t.Error("whisper should use the OpenAI key")
	}
}

func TestApplyEnvPrefersGeminiKey(t *testing.T) {
	c := Default()
	c.ApplyEnv(env(map[string]string{"GEMINI_API_KEY": "gemini", "GOOGLE_API_KEY": "google"}))
	if c.Providers.GeminiAPIKey != "gemini" {
		t.Errorf("GeminiAPIKey = %q, want gemini", c.Providers.GeminiAPIKey)
	}
}

func TestApplyEnvErrors(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(env(map[string]string{
		"HOLOGRAM_PORT":         "eighty",
		"HOLOGRAM_GRACE_PERIOD": "later",
	}))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"HOLOGRAM_PORT", "HOLOGRAM_GRACE_PERIOD"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error should mention %s: %v", key, err)
		}
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hologram.toml")
	if err := os.WriteFile(path, []byte("[server]\nport = 9000\nhost = \"0.0.0.0\"\n[vision]\nstrategy = \"wave\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	lookup := env(map[string]string{"HOLOGRAM_PORT": "9100", "HOLOGRAM_VISION_STRATEGY": "both"})
	c, f, err := Load([]string{"--config", path, "--env", filepath.Join(dir, "missing.env"), "--strategy", "motion"}, lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f.ConfigFile != path {
		t.Errorf("ConfigFile = %q", f.ConfigFile)
	}
	if c.Server.Host != "0.0.0.0" {
		t.Errorf("file value lost: host = %q", c.Server.Host)
	}
	if c.Server.Port != 9100 {
		t.Errorf("env should beat file: port = %d", c.Server.Port)
	}
	if c.Vision.Strategy != "motion" {
		t.Errorf("flag should beat env: strategy = %q", c.Vision.Strategy)
	}
}

func TestLoadUnsetFlagsKeepLowerLayers(t *testing.T) {
	lookup := env(map[string]string{"HOLOGRAM_PORT": "9100"})
	c, _, err := Load([]string{"--env", ""}, lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Server.Port != 9100 {
		t.Errorf("flag default overrode env: port = %d", c.Server.Port)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, _, err := Load([]string{"--config", filepath.Join(t.TempDir(), "nope.toml")}, env(nil)); err == nil {
		t.Error("expected error for missing config file")
	}
	if _, _, err := Load([]string{"--bogus"}, env(nil)); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestWriteTOMLRoundTrip(t *testing.T) {
	c := Default()
	c.Mode.GracePeriod = D(1500 * time.Millisecond)
	c.Providers.OpenAIAPIKey = "secret"

	var buf bytes.Buffer
	if err := c.WriteTOML(&buf); err != nil {
		t.Fatalf("WriteTOML() error = %v", err)
	}
	if strings.Contains(buf.String(), "secret") {
		t.Error("API key written to TOML")
	}

	back := Default()
	if err := back.Decode(&buf); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if back.Mode.GracePeriod.Duration != 1500*time.Millisecond {
		t.Errorf("grace = %v after round trip", back.Mode.GracePeriod)
	}
}

func TestFlagsExtraToolFlags(t *testing.T) {
	f := NewFlags("tool")
	text := f.FlagSet().String("text", "", "")
	c, err := f.Load([]string{"--env", "", "--text", "merhaba", "--port", "9001"}, env(nil))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *text != "merhaba" || c.Server.Port != 9001 {
		t.Errorf("text = %q port = %d", *text, c.Server.Port)
	}
}
