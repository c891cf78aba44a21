package inference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const scopeName = "github.com/teslashibe/go-hologram/pkg/inference"

var tracer = otel.Tracer(scopeName)

// DefaultSystemPrompt is the hologram's character: a gentle, child-like
// friend that answers in short Turkish sentences meant to be spoken aloud.
const DefaultSystemPrompt = `Sen bir hologram asistansın.
Karakterin: çocuksu, nazik, arkadaş canlısı, sakin ve sıcak.
Kısa cümleler kur. Hafif oyunbaz ol ama asla cıvıklaşma.
Robotik tondan kaçın, insansı ve samimi ol.
Cevapların kısa ve öz olsun, en fazla iki cümle.
Emoji, liste veya özel karakter kullanma; cevabın sesli okunacak.`

// PersonaConfig controls how a Persona prompts its provider.
type PersonaConfig struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float64

	// History is how many earlier exchanges are resent with each prompt.
	// Zero makes every reply independent.
	History int

	Logger *slog.Logger
}

// DefaultPersonaConfig returns the hologram persona.
func DefaultPersonaConfig() PersonaConfig {
	return PersonaConfig{
		SystemPrompt: DefaultSystemPrompt,
		MaxTokens:    150,
		Temperature:  0.7,
		History:      3,
	}
}

// Persona answers single utterances in character. It implements Generator.
type Persona struct {
	provider Provider
	cfg      PersonaConfig
	history  history
	logger   *slog.Logger
}

// NewPersona wraps provider with a system prompt.
func NewPersona(provider Provider, cfg PersonaConfig) *Persona {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Persona{
		provider: provider,
		cfg:      cfg,
		history:  history{max: cfg.History},
		logger:   logger.With("component", "inference.persona"),
	}
}

// Generate returns the reply to prompt. Failures wrap ErrGeneration.
func (p *Persona) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "generate reply")
	defer span.End()
	span.SetAttributes(
		attribute.String("inference.provider", p.provider.Name()),
		attribute.Int("inference.prompt_chars", len(prompt)),
	)

	resp, err := p.provider.Chat(ctx, &ChatRequest{
		System:      p.cfg.SystemPrompt,
		Messages:    p.history.prompt(prompt),
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		err = fmt.Errorf("%w: %w", ErrGeneration, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	reply := strings.TrimSpace(resp.Message.Content)
	if reply == "" {
		err := fmt.Errorf("%w: %w", ErrGeneration, ErrEmptyResponse)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(
		attribute.String("inference.model", resp.Model),
		attribute.Int("inference.total_tokens", resp.Usage.TotalTokens),
	)
	p.history.add(prompt, reply)
	p.logger.Debug("generated reply", "provider", resp.Provider, "latency_ms", resp.LatencyMs)
	return reply, nil
}

// Forget drops the remembered exchanges.
func (p *Persona) Forget() {
	p.history.reset()
}

// Verify Persona implements Generator at compile time.
var (
	_ Generator = (*Persona)(nil)
	_ Forgetter = (*Persona)(nil)
)
