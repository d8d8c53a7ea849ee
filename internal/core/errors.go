package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies pipeline errors for the retry/fallback policy.
type ErrorKind string

const (
	// ErrorKindConfig indicates an invalid configuration. Fatal: surfaced
	// to the caller before any chunk processing begins.
	ErrorKindConfig ErrorKind = "config_error"
	// ErrorKindTransient indicates a recoverable external-call failure
	// (timeout, 5xx, rate limit, network error). Eligible for the single
	// retry pass.
	ErrorKindTransient ErrorKind = "transient_error"
	// ErrorKindContentBlocked indicates the provider's content-safety
	// mechanism refused the request. Handled by a one-time per-call
	// provider substitution, not counted as a failure unless the
	// fallback also fails.
	ErrorKindContentBlocked ErrorKind = "content_blocked"
	// ErrorKindProvider indicates a non-retryable provider rejection
	// (malformed request, authentication).
	ErrorKindProvider ErrorKind = "provider_error"
)

// PipelineError is the typed error for all pipeline failures.
type PipelineError struct {
	Kind     ErrorKind
	Message  string
	Provider string
	// BlockReason is set for content-blocked errors (provider-specific).
	BlockReason string
	Err         error
}

func (e *PipelineError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a fatal configuration error.
func NewConfigError(format string, args ...any) *PipelineError {
	return &PipelineError{
		Kind:    ErrorKindConfig,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewTransientError creates a recoverable external-call error.
func NewTransientError(provider, message string, err error) *PipelineError {
	return &PipelineError{
		Kind:     ErrorKindTransient,
		Message:  message,
		Provider: provider,
		Err:      err,
	}
}

// NewContentBlockedError creates an error for a content-safety refusal.
func NewContentBlockedError(provider, blockReason string) *PipelineError {
	return &PipelineError{
		Kind:        ErrorKindContentBlocked,
		Message:     fmt.Sprintf("content blocked (%s)", blockReason),
		Provider:    provider,
		BlockReason: blockReason,
	}
}

// NewProviderError creates a non-retryable provider error.
func NewProviderError(provider, message string, err error) *PipelineError {
	return &PipelineError{
		Kind:     ErrorKindProvider,
		Message:  message,
		Provider: provider,
		Err:      err,
	}
}

// IsConfigError reports whether err is a fatal configuration error.
func IsConfigError(err error) bool {
	return kindOf(err) == ErrorKindConfig
}

// IsTransient reports whether err is eligible for the retry pass.
func IsTransient(err error) bool {
	return kindOf(err) == ErrorKindTransient
}

// IsContentBlocked reports whether err is a content-safety refusal.
func IsContentBlocked(err error) bool {
	return kindOf(err) == ErrorKindContentBlocked
}

func kindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// ParseProviderError maps an HTTP error response from a provider to a
// typed pipeline error. Rate limits and server-side failures are
// transient; client-side rejections are not.
func ParseProviderError(provider string, statusCode int, body []byte, originalErr error) *PipelineError {
	var errorResponse struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	message := fmt.Sprintf("status %d: %s", statusCode, string(body))
	if err := json.Unmarshal(body, &errorResponse); err == nil && errorResponse.Error.Message != "" {
		message = fmt.Sprintf("status %d: %s", statusCode, errorResponse.Error.Message)
	}

	switch {
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return NewTransientError(provider, message, originalErr)
	default:
		return NewProviderError(provider, message, originalErr)
	}
}
