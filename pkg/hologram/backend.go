package hologram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/teslashibe/go-hologram/internal/config"
	"github.com/teslashibe/go-hologram/internal/httpc"
	"github.com/teslashibe/go-hologram/pkg/audioio"
	"github.com/teslashibe/go-hologram/pkg/inference"
	"github.com/teslashibe/go-hologram/pkg/stt"
	"github.com/teslashibe/go-hologram/pkg/tts"
	"github.com/teslashibe/go-hologram/pkg/vision"
	"github.com/teslashibe/go-hologram/pkg/vision/capture"
)

// Backend holds the device and cloud providers behind the pipelines.
type Backend struct {
	Source      audioio.Source
	Camera      vision.Camera
	Differ      vision.Differ     // nil unless the strategy detects motion
	Landmarker  vision.Landmarker // nil unless the strategy tracks hands
	Transcriber stt.Transcriber
	Generator   inference.Generator
	Synthesizer tts.Provider
}

// ErrNoProvider is returned when no API key is configured for a service.
var ErrNoProvider = errors.New("hologram: no provider configured")

// buildBackend fills the nil fields of b from cfg. The returned closers
// release what was built here.
func buildBackend(ctx context.Context, cfg *config.Config, b Backend, logger *slog.Logger) (Backend, []io.Closer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var closers []io.Closer
	p := cfg.Providers
	client := httpc.NewClient(p.Timeout.Duration)

	if b.Source == nil {
		src, err := audioio.NewSource(cfg.AudioConfig(), logger)
		if err != nil {
			return b, closers, fmt.Errorf("audio source: %w", err)
		}
		b.Source = src
	}

	if b.Camera == nil {
		cc := cfg.CameraConfig()
		if cfg.Vision.Backend == config.CameraMock {
			b.Camera = vision.NewMockCamera(cc.Width, cc.Height)
		} else {
			b.Camera = capture.NewCamera(cc, logger)
		}
	}

	if b.Differ == nil && cfg.VisionConfig().Strategy.NeedsDiffer() {
		d := capture.NewDiffer()
		closers = append(closers, d)
		b.Differ = d
	}

	if b.Landmarker == nil && cfg.VisionConfig().Strategy.NeedsLandmarks() {
		if cfg.Vision.Backend == config.CameraMock {
			b.Landmarker = vision.NewMockLandmarker()
		} else {
			lm, err := capture.NewHandLandmarker(cfg.LandmarkConfig())
			if err != nil {
				return b, closers, fmt.Errorf("hand landmarks: %w", err)
			}
			closers = append(closers, lm)
			b.Landmarker = lm
		}
	}

	if b.Transcriber == nil {
		if p.OpenAIAPIKey == "" {
			return b, closers, fmt.Errorf("%w: transcription needs OPENAI_API_KEY", ErrNoProvider)
		}
		sc := cfg.WhisperConfig()
		sc.HTTPClient = client
		sc.Logger = logger
		w, err := stt.NewWhisper(sc)
		if err != nil {
			return b, closers, err
		}
		b.Transcriber = w
	}

	if b.Generator == nil {
		gen, providers, err := buildGenerator(ctx, p, client, logger)
		for _, pr := range providers {
			closers = append(closers, pr)
		}
		if err != nil {
			return b, closers, err
		}
		b.Generator = gen
	}

	if b.Synthesizer == nil {
		synth, err := buildSynthesizer(p, client, logger)
		if err != nil {
			return b, closers, err
		}
		closers = append(closers, synth)
		b.Synthesizer = synth
	}

	return b, closers, nil
}

// buildGenerator chains Gemini before OpenAI, keeping whichever have keys.
func buildGenerator(ctx context.Context, p config.Providers, client *http.Client, logger *slog.Logger) (inference.Generator, []inference.Provider, error) {
	var providers []inference.Provider

	if p.GeminiAPIKey != "" {
		opts := []inference.Option{
			inference.WithAPIKey(p.GeminiAPIKey),
			inference.WithHTTPClient(client),
			inference.WithLogger(logger),
		}
		if p.GeminiModel != "" {
			opts = append(opts, inference.WithModel(p.GeminiModel))
		}
		g, err := inference.NewGemini(ctx, opts...)
		if err != nil {
			return nil, providers, err
		}
		providers = append(providers, g)
	}

	if p.OpenAIAPIKey != "" {
		opts := []inference.Option{
			inference.WithAPIKey(p.OpenAIAPIKey),
			inference.WithHTTPClient(client),
			inference.WithLogger(logger),
		}
		if p.OpenAIModel != "" {
			opts = append(opts, inference.WithModel(p.OpenAIModel))
		}
		o, err := inference.NewOpenAI(opts...)
		if err != nil {
			return nil, providers, err
		}
		providers = append(providers, o)
	}

	if len(providers) == 0 {
		return nil, nil, fmt.Errorf("%w: generation needs GEMINI_API_KEY or OPENAI_API_KEY", ErrNoProvider)
	}

	chain, err := inference.NewChainWithLogger(logger, providers...)
	if err != nil {
		return nil, providers, err
	}
	pc := inference.DefaultPersonaConfig()
	pc.Logger = logger
	return inference.NewPersona(chain, pc), providers, nil
}

// buildSynthesizer chains ElevenLabs before OpenAI TTS.
func buildSynthesizer(p config.Providers, client *http.Client, logger *slog.Logger) (tts.Provider, error) {
	var providers []tts.Provider

	if p.ElevenLabsAPIKey != "" {
		voiceID := p.ElevenLabsVoice
		if voiceID == "" {
			voiceID = tts.DefaultVoiceID
		}
		e, err := tts.NewElevenLabs(
			tts.WithAPIKey(p.ElevenLabsAPIKey),
			tts.WithVoice(voiceID),
			tts.WithHTTPClient(client),
			tts.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		providers = append(providers, e)
	}

	if p.OpenAIAPIKey != "" {
		opts := []tts.Option{
			tts.WithAPIKey(p.OpenAIAPIKey),
			tts.WithHTTPClient(client),
			tts.WithLogger(logger),
		}
		if p.OpenAIVoice != "" {
			opts = append(opts, tts.WithVoice(p.OpenAIVoice))
		}
		o, err := tts.NewOpenAI(opts...)
		if err != nil {
			return nil, err
		}
		providers = append(providers, o)
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: synthesis needs ELEVENLABS_API_KEY or OPENAI_API_KEY", ErrNoProvider)
	}
	chain, err := tts.NewChainWithLogger(logger, providers...)
	if err != nil {
		return nil, err
	}
	return chain, nil
}

// NewSynthesizer builds the configured speech synthesis chain.
func NewSynthesizer(cfg *config.Config, logger *slog.Logger) (tts.Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return buildSynthesizer(cfg.Providers, httpc.NewClient(cfg.Providers.Timeout.Duration), logger)
}

// NewGenerator builds the configured reply generator. Call release when done.
func NewGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (gen inference.Generator, release func(), err error) {
	if logger == nil {
		logger = slog.Default()
	}
	gen, providers, err := buildGenerator(ctx, cfg.Providers, httpc.NewClient(cfg.Providers.Timeout.Duration), logger)
	release = func() {
		for _, p := range providers {
			p.Close()
		}
	}
	if err != nil {
		release()
		return nil, nil, err
	}
	return gen, release, nil
}
