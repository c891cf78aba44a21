package inference

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-hologram/internal/fallback"
)

// Chain is a Provider that asks each of its providers in turn, e.g. Gemini
// then OpenAI.
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
		logger:    logger.With("component", "inference.chain"),
	}, nil
}

// Chat returns the first provider's successful response. When all fail the
// error is a *ChainError.
func (c *Chain) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	resp, failures, err := fallback.First(ctx, c.logger, c.providers, func(p Provider) (*ChatResponse, error) {
		return p.Chat(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, &ChainError{Errors: failures}
	}
	return resp, nil
}

func (c *Chain) Name() string {
	return "chain"
}

// Close closes every provider in the chain.
func (c *Chain) Close() error {
	return fallback.CloseAll(c.providers)
}

var _ Provider = (*Chain)(nil)
