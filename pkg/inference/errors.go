package inference

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

var (
	ErrNoAPIKey            = errors.New("inference: API key required")
	ErrEmptyResponse       = errors.New("inference: empty response")
	ErrProviderUnavailable = errors.New("inference: provider unavailable")
	ErrAllProvidersFailed  = errors.New("inference: all providers failed")

	// ErrGeneration marks a failed reply. The voice loop answers with an
	// apology when it sees it.
	ErrGeneration = errors.New("inference: generation failed")
)

// APIError is an error status returned by a model API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("inference [%s]: API error %d (%s): %s",
			e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("inference [%s]: API error %d: %s",
		e.Provider, e.StatusCode, e.Message)
}

// Temporary reports rate limiting and server-side failures.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// apiError converts SDK errors from either client into *APIError, or wraps
// err with the provider name when it is not an API status.
func apiError(provider string, err error) error {
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return &APIError{StatusCode: gErr.Code, Message: gErr.Message, Code: gErr.Status, Provider: provider}
	}
	var oErr *openai.Error
	if errors.As(err, &oErr) {
		return &APIError{StatusCode: oErr.StatusCode, Message: oErr.Message, Code: oErr.Code, Provider: provider}
	}
	return WrapError(provider, err)
}

// temporary reports whether err, after conversion, is worth retrying.
func temporary(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}

// ProviderError attributes a non-API error to a provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("inference [%s]: %v", e.Provider, e.Err)
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

// ChainError collects each provider's failure, in chain order.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "inference chain: no errors recorded"
	case 1:
		return fmt.Sprintf("inference chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("inference chain: all %d providers failed, last error: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Is matches ErrAllProvidersFailed and ErrGeneration.
func (e *ChainError) Is(target error) bool {
	return target == ErrAllProvidersFailed || target == ErrGeneration
}

func (e *ChainError) Unwrap() []error {
	return e.Errors
}
