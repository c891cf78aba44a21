package tts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-hologram/internal/fallback"
)

// Chain is a Provider that falls back through its providers in order,
// e.g. ElevenLabs then OpenAI.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain returns a chain logging to slog.Default.
func NewChain(providers ...Provider) (*Chain, error) {
	return NewChainWithLogger(nil, providers...)
}

// NewChainWithLogger returns a chain over providers, which must not be empty.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "tts.chain"),
	}, nil
}

// Synthesize returns the first successful synthesis. When every provider
// fails the error is a *ChainError matching ErrAllProvidersFailed.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	res, failures, err := fallback.First(ctx, c.logger, c.providers, func(p Provider) (*AudioResult, error) {
		return p.Synthesize(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, &ChainError{Errors: failures}
	}
	return res, nil
}

// Health succeeds when at least one provider is healthy.
func (c *Chain) Health(ctx context.Context) error {
	var lastErr error
	healthy := 0
	for _, p := range c.providers {
		if err := p.Health(ctx); err != nil {
			lastErr = err
			continue
		}
		healthy++
	}
	if healthy == 0 {
		return fmt.Errorf("all %d providers unhealthy: %w", len(c.providers), lastErr)
	}
	c.logger.Debug("health check complete", "healthy", healthy, "total", len(c.providers))
	return nil
}

func (c *Chain) Name() string {
	return "chain"
}

// Close closes every provider in the chain.
func (c *Chain) Close() error {
	return fallback.CloseAll(c.providers)
}

// ChainError lists each provider's failure, in chain order.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "tts chain: no errors recorded"
	case 1:
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("tts chain: all %d providers failed, last error: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Is matches ErrAllProvidersFailed.
func (e *ChainError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

func (e *ChainError) Unwrap() []error {
	return e.Errors
}

var _ Provider = (*Chain)(nil)
