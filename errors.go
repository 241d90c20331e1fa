package lamp

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// LampError is the base error type for all client errors.
// It provides context about the error including provider, model, and
// status code. All specific error types embed this base type.
type LampError struct {
	// Message is the human-readable error message.
	Message string

	// StatusCode is the HTTP status code (if applicable).
	StatusCode int

	// Provider is the provider adapter where the error occurred.
	Provider string

	// Model is the model that was being used when the error occurred.
	Model string

	// OriginalError is the underlying error that caused this error.
	OriginalError error
}

// Error implements the error interface.
// Returns a formatted error message with provider context when available.
func (e *LampError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s", e.Provider, e.Message)
	}
	return e.Message
}

// Unwrap returns the original underlying error.
// This enables error chain traversal using errors.Is() and errors.As().
func (e *LampError) Unwrap() error {
	return e.OriginalError
}

// IsRetryable returns true if this error represents a retryable condition.
// Base implementation returns false; specific error types override this.
func (e *LampError) IsRetryable() bool {
	return false
}

// APIError represents a general API error from the provider.
// Used for errors that don't fit into more specific categories.
type APIError struct {
	LampError
}

// NewAPIError creates a new API error with the given details.
func NewAPIError(message string, statusCode int, provider string, err error) *APIError {
	return &APIError{
		LampError: LampError{
			Message:       message,
			StatusCode:    statusCode,
			Provider:      provider,
			OriginalError: err,
		},
	}
}

// AuthenticationError represents an authentication failure (401).
// This occurs when the API key is invalid, missing, or expired.
// Never retried; the user must fix the credential.
type AuthenticationError struct {
	LampError
}

// NewAuthenticationError creates a new authentication error.
func NewAuthenticationError(message string, provider string, err error) *AuthenticationError {
	return &AuthenticationError{
		LampError: LampError{
			Message:       message,
			StatusCode:    401,
			Provider:      provider,
			OriginalError: err,
		},
	}
}

// RateLimitError represents a rate limit exceeded error (429).
// This is retryable after the specified retry-after duration.
type RateLimitError struct {
	LampError

	// RetryAfter specifies how long to wait before retrying.
	RetryAfter time.Duration
}

// NewRateLimitError creates a new rate limit error.
func NewRateLimitError(message string, provider string, retryAfter time.Duration, err error) *RateLimitError {
	return &RateLimitError{
		LampError: LampError{
			Message:       message,
			StatusCode:    429,
			Provider:      provider,
			OriginalError: err,
		},
		RetryAfter: retryAfter,
	}
}

// IsRetryable returns true for rate limit errors.
func (e *RateLimitError) IsRetryable() bool {
	return true
}

// ServiceUnavailableError represents a server-side error (5xx).
// This is retryable as the service may recover shortly.
type ServiceUnavailableError struct {
	LampError
}

// NewServiceUnavailableError creates a new service unavailable error.
func NewServiceUnavailableError(message string, provider string, err error) *ServiceUnavailableError {
	return &ServiceUnavailableError{
		LampError: LampError{
			Message:       message,
			StatusCode:    503,
			Provider:      provider,
			OriginalError: err,
		},
	}
}

// IsRetryable returns true for service unavailable errors.
func (e *ServiceUnavailableError) IsRetryable() bool {
	return true
}

// TimeoutError represents a request timeout.
// Retryable, but it counts toward the same retry budget as network errors
// so it also bounds worst-case latency.
type TimeoutError struct {
	LampError
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(message string, provider string, err error) *TimeoutError {
	return &TimeoutError{
		LampError: LampError{
			Message:       message,
			StatusCode:    0, // No HTTP status for timeouts
			Provider:      provider,
			OriginalError: err,
		},
	}
}

// IsRetryable returns true for timeout errors.
func (e *TimeoutError) IsRetryable() bool {
	return true
}

// NetworkError represents a transport-level failure before any HTTP
// status was received (connection refused, DNS failure, reset).
type NetworkError struct {
	LampError
}

// NewNetworkError creates a new network error.
func NewNetworkError(message string, provider string, err error) *NetworkError {
	return &NetworkError{
		LampError: LampError{
			Message:       message,
			Provider:      provider,
			OriginalError: err,
		},
	}
}

// IsRetryable returns true for network errors.
func (e *NetworkError) IsRetryable() bool {
	return true
}

// PluginUnsupportedError represents a 400 rejection attributable to an
// optional plugin (such as web search) not being supported by the
// selected model. It is not retried blindly; instead the streaming
// controller resubmits once with the plugin removed and the model's
// online suffix stripped.
type PluginUnsupportedError struct {
	LampError
}

// NewPluginUnsupportedError creates a new plugin-unsupported error.
func NewPluginUnsupportedError(message string, provider string, err error) *PluginUnsupportedError {
	return &PluginUnsupportedError{
		LampError: LampError{
			Message:       message,
			StatusCode:    400,
			Provider:      provider,
			OriginalError: err,
		},
	}
}

// BadRequestError represents a bad request error (400) that doesn't fit
// other categories. Fatal, surfaced as-is.
type BadRequestError struct {
	LampError
}

// NewBadRequestError creates a new bad request error.
func NewBadRequestError(message string, provider string, err error) *BadRequestError {
	return &BadRequestError{
		LampError: LampError{
			Message:       message,
			StatusCode:    400,
			Provider:      provider,
			OriginalError: err,
		},
	}
}

// MalformedResponseError represents a response body that could not be
// parsed as JSON or SSE. Never retried; corrupted data should surface,
// not be masked.
type MalformedResponseError struct {
	LampError
}

// NewMalformedResponseError creates a new malformed response error.
func NewMalformedResponseError(message string, provider string, err error) *MalformedResponseError {
	return &MalformedResponseError{
		LampError: LampError{
			Message:       message,
			Provider:      provider,
			OriginalError: err,
		},
	}
}

// pluginMarkers are body-text fragments that identify a 400 rejection
// caused by plugin/model incompatibility. Checked case-insensitively.
var pluginMarkers = []string{
	"plugin",
	"web search is not supported",
	"online model",
	"tool use is not supported",
}

// isPluginRejection reports whether a 400 error message indicates that
// the optional web-search plugin was rejected by the selected model.
func isPluginRejection(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range pluginMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ParseProviderError parses a provider-specific error response into a
// typed error. Attempts to extract the `error.message` field from JSON
// bodies and maps HTTP status codes to the appropriate error type.
//
// Parameters:
//   - provider: the provider adapter name (e.g., "openrouter")
//   - statusCode: the HTTP status code from the error response
//   - body: the raw response body bytes
//   - err: the original error (if any)
func ParseProviderError(provider string, statusCode int, body []byte, err error) error {
	message := ""
	if gjson.ValidBytes(body) {
		if m := gjson.GetBytes(body, "error.message"); m.Exists() {
			message = m.String()
		} else if m := gjson.GetBytes(body, "message"); m.Exists() {
			message = m.String()
		}
	}
	if message == "" {
		// Fall back to raw body if no structured message was found
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = fmt.Sprintf("HTTP %d error", statusCode)
	}

	switch {
	case statusCode == 401:
		return NewAuthenticationError(message, provider, err)

	case statusCode == 429:
		return NewRateLimitError(message, provider, 0, err)

	case statusCode == 400:
		if isPluginRejection(message) {
			return NewPluginUnsupportedError(message, provider, err)
		}
		return NewBadRequestError(message, provider, err)

	case statusCode >= 500:
		serviceErr := NewServiceUnavailableError(message, provider, err)
		serviceErr.StatusCode = statusCode
		return serviceErr

	default:
		return NewAPIError(message, statusCode, provider, err)
	}
}
