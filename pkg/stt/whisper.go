package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/teslashibe/go-hologram/internal/httpc"
)

const scopeName = "github.com/teslashibe/go-hologram/pkg/stt"

var tracer = otel.Tracer(scopeName)

// Config configures the Whisper transcriber.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Language   string // ISO-639-1, e.g. "tr"
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// DefaultConfig returns Turkish Whisper transcription defaults.
func DefaultConfig() Config {
	return Config{
		Model:      openai.AudioModelWhisper1,
		Language:   "tr",
		Timeout:    30 * time.Second,
		MaxRetries: 2,
	}
}

// Whisper transcribes audio with the OpenAI transcription API.
type Whisper struct {
	client openai.Client
	cfg    Config
	logger *slog.Logger
}

// NewWhisper creates a Whisper transcriber.
func NewWhisper(cfg Config) (*Whisper, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("stt: API key required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.AudioModelWhisper1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpc.NewClient(cfg.Timeout)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Whisper{
		client: openai.NewClient(opts...),
		cfg:    cfg,
		logger: logger.With("component", "stt"),
	}, nil
}

// Transcribe sends the recording to Whisper. Empty results return
// ErrNoTranscript.
func (w *Whisper) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	ctx, span := tracer.Start(ctx, "transcribe")
	defer span.End()
	span.SetAttributes(
		attribute.String("stt.model", w.cfg.Model),
		attribute.String("stt.language", w.cfg.Language),
	)

	start := time.Now()
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, filename, "audio/wav"),
		Model: openai.AudioModel(w.cfg.Model),
	}
	if w.cfg.Language != "" {
		params.Language = openai.String(w.cfg.Language)
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		err = fmt.Errorf("%w: %w", ErrNoTranscript, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		span.SetStatus(codes.Error, "empty transcript")
		return "", ErrNoTranscript
	}

	span.SetAttributes(attribute.Int("stt.chars", len(text)))
	w.logger.Info("transcribed", "text", text, "latency_ms", time.Since(start).Milliseconds())
	return text, nil
}

// Verify Whisper implements Transcriber at compile time.
var _ Transcriber = (*Whisper)(nil)
