// Package fallback runs a call against an ordered list of providers until
// one succeeds. The inference and tts chains are built on it.
package fallback

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// Named is a provider that can be identified in logs.
type Named interface {
	Name() string
}

// First calls call on each provider in order and returns the first
// success. failures holds one error per provider that failed. err is set
// only when ctx ended, in which case later providers are not tried.
func First[P Named, R any](ctx context.Context, logger *slog.Logger, providers []P, call func(P) (R, error)) (res R, failures []error, err error) {
	for i, p := range providers {
		r, callErr := call(p)
		if callErr == nil {
			if i > 0 {
				logger.Info("fallback provider succeeded", "provider", p.Name(), "skipped", i)
			}
			return r, nil, nil
		}
		if ctx.Err() != nil {
			return res, failures, ctx.Err()
		}
		failures = append(failures, callErr)
		logger.Warn("provider failed, trying next", "provider", p.Name(), "error", callErr)
	}
	return res, failures, nil
}

// CloseAll closes every provider and joins the errors.
func CloseAll[P io.Closer](providers []P) error {
	var errs []error
	for _, p := range providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
