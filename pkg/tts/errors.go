package tts

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	ErrNoAPIKey            = errors.New("tts: API key required")
	ErrNoVoiceID           = errors.New("tts: voice ID required")
	ErrEmptyText           = errors.New("tts: empty text")
	ErrProviderUnavailable = errors.New("tts: no providers available")

	// ErrAllProvidersFailed marks a synthesis failure: every provider in
	// the chain was tried.
	ErrAllProvidersFailed = errors.New("tts: all providers failed")
)

// maxErrorBody caps how much of an error response is kept in messages.
const maxErrorBody = 4 << 10

// APIError is a non-2xx response from a synthesis API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string // provider error code, may be empty
	Provider   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tts [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("tts [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Unauthorized reports a rejected API key.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Temporary reports whether the same request may succeed later.
func (e *APIError) Temporary() bool {
	return retryableStatus(e.StatusCode)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// errorFields pulls a message and code out of a provider's error JSON.
// ok is false when the body is not in the provider's format.
type errorFields func(body []byte) (message, code string, ok bool)

// readAPIError drains resp into an APIError, falling back to the raw body
// when fields cannot parse it.
func readAPIError(provider string, resp *http.Response, fields errorFields) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e := &APIError{
		StatusCode: resp.StatusCode,
		Message:    string(body),
		Provider:   provider,
	}
	if msg, code, ok := fields(body); ok {
		e.Message, e.Code = msg, code
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

// ProviderError attributes an error to the provider that raised it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError tags err with provider. A nil err stays nil.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
