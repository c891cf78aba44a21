package tts

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/go-hologram/internal/httpc"
)

// Config is shared by the HTTP providers. Set it with Options.
type Config struct {
	APIKey  string
	BaseURL string // empty uses the provider's public endpoint

	VoiceID       string
	ModelID       string
	VoiceSettings VoiceSettings
	OutputFormat  Encoding

	Timeout    time.Duration // ignored when HTTPClient is set
	HTTPClient *http.Client

	MaxRetries int
	RetryDelay time.Duration // multiplied by the attempt number

	Logger *slog.Logger
}

type Option func(*Config)

func WithAPIKey(key string) Option { return func(c *Config) { c.APIKey = key } }
func WithBaseURL(url string) Option { return func(c *Config) { c.BaseURL = url } }
func WithVoice(voiceID string) Option { return func(c *Config) { c.VoiceID = voiceID } }
func WithModel(modelID string) Option { return func(c *Config) { c.ModelID = modelID } }
func WithOutputFormat(f Encoding) Option { return func(c *Config) { c.OutputFormat = f } }
func WithTimeout(d time.Duration) Option { return func(c *Config) { c.Timeout = d } }
func WithHTTPClient(h *http.Client) Option { return func(c *Config) { c.HTTPClient = h } }
func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }

func WithVoiceSettings(s VoiceSettings) Option {
	return func(c *Config) { c.VoiceSettings = s }
}

// WithRetry retries 429 and 5xx responses up to maxRetries times.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// DefaultConfig targets spoken Turkish played in a browser: a multilingual
// model and MP3 output.
func DefaultConfig() *Config {
	return &Config{
		ModelID:       ModelMultilingualV2,
		OutputFormat:  EncodingMP3,
		VoiceSettings: DefaultVoiceSettings(),
		Timeout:       30 * time.Second,
		MaxRetries:    2,
		RetryDelay:    200 * time.Millisecond,
	}
}

func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

// ValidateWithVoice also requires a voice ID.
func (c *Config) ValidateWithVoice() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.VoiceID == "" {
		return ErrNoVoiceID
	}
	return nil
}

func (c *Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return httpc.NewClient(c.Timeout)
}

func (c *Config) logger(component string) *slog.Logger {
	l := c.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", component)
}

// requester builds the retrying request helper for one provider.
func (c *Config) requester(provider string, client *http.Client, logger *slog.Logger, parseError func(*http.Response) error) *requester {
	return &requester{
		client:     client,
		logger:     logger,
		provider:   provider,
		maxRetries: c.MaxRetries,
		retryDelay: c.RetryDelay,
		parseError: parseError,
	}
}
