package lamp

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AppleLamps/gpt-lamp/cache"
	"github.com/AppleLamps/gpt-lamp/callback"
)

// Defaults applied by NewClient when not overridden by options.
const (
	// DefaultTimeout bounds one physical attempt, measured from its
	// request start.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the retry budget per logical call
	// (DefaultMaxRetries retries, DefaultMaxRetries+1 total attempts).
	DefaultMaxRetries = 2

	// DefaultRetryDelay is the base delay for linear backoff:
	// delay before retry N is N * DefaultRetryDelay.
	DefaultRetryDelay = 1 * time.Second

	// DefaultCacheThreshold is the content length, in characters, above
	// which the request builder attaches a server-side cache marker.
	DefaultCacheThreshold = 4000
)

// HTTPClient defines the interface for HTTP clients.
// This allows injection of custom clients or mocks for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds all client configuration.
type ClientConfig struct {
	// DefaultTimeout is the default timeout for all requests.
	DefaultTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts per logical call.
	MaxRetries int

	// RetryDelay is the base delay for linear backoff between retries.
	RetryDelay time.Duration

	// CacheThreshold is the content length above which the request
	// builder attaches a long-context cache marker.
	CacheThreshold int

	// Logger receives structured client logs. Credentials are never
	// logged in cleartext. Defaults to slog.Default().
	Logger *slog.Logger

	// HTTPClient, when set, is injected into providers that accept one
	// as they are registered. Nil leaves each provider's own transport
	// in place.
	HTTPClient HTTPClient

	// Cache is the response cache for buffered completions (nil disables caching).
	Cache cache.Cache

	// Callbacks is the callback registry for request lifecycle hooks.
	Callbacks *callback.Registry
}

// ClientOption is a functional option for configuring the client.
type ClientOption func(*ClientConfig) error

// defaultConfig returns the default configuration.
func defaultConfig() *ClientConfig {
	return &ClientConfig{
		DefaultTimeout: DefaultTimeout,
		MaxRetries:     DefaultMaxRetries,
		RetryDelay:     DefaultRetryDelay,
		CacheThreshold: DefaultCacheThreshold,
		Logger:         slog.Default(),
	}
}

// Validate checks the configuration for invalid values.
func (c *ClientConfig) Validate() error {
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.DefaultTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must be non-negative, got %v", c.RetryDelay)
	}
	if c.CacheThreshold <= 0 {
		return fmt.Errorf("cache threshold must be positive, got %d", c.CacheThreshold)
	}
	return nil
}

// WithTimeout sets the default timeout for requests.
//
// The timeout bounds each physical attempt; a timed-out attempt counts
// as a transient failure and may be retried.
// Returns an error if timeout is zero or negative.
//
// Example:
//
//	lamp.WithTimeout(45 * time.Second)
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", timeout)
		}
		c.DefaultTimeout = timeout
		return nil
	}
}

// WithRetries configures retry behavior.
//
// Parameters:
//   - maxRetries: maximum number of retry attempts (must be non-negative)
//   - baseDelay: base delay for linear backoff (must be non-negative);
//     the wait before retry N is N * baseDelay
//
// Example:
//
//	lamp.WithRetries(2, time.Second)
func WithRetries(maxRetries int, baseDelay time.Duration) ClientOption {
	return func(c *ClientConfig) error {
		if maxRetries < 0 {
			return fmt.Errorf("maxRetries must be non-negative, got %d", maxRetries)
		}
		if baseDelay < 0 {
			return fmt.Errorf("baseDelay must be non-negative, got %v", baseDelay)
		}
		c.MaxRetries = maxRetries
		c.RetryDelay = baseDelay
		return nil
	}
}

// WithMaxRetries sets only the maximum retry count.
func WithMaxRetries(max int) ClientOption {
	return func(c *ClientConfig) error {
		if max < 0 {
			return fmt.Errorf("max retries must be non-negative, got %d", max)
		}
		c.MaxRetries = max
		return nil
	}
}

// WithCacheThreshold sets the content length above which the request
// builder attaches a long-context cache marker.
//
// Example:
//
//	lamp.WithCacheThreshold(8000)
func WithCacheThreshold(chars int) ClientOption {
	return func(c *ClientConfig) error {
		if chars <= 0 {
			return fmt.Errorf("cache threshold must be positive, got %d", chars)
		}
		c.CacheThreshold = chars
		return nil
	}
}

// WithLogger sets the structured logger used by the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *ClientConfig) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.Logger = logger
		return nil
	}
}

// WithHTTPClient sets a custom HTTP client, applied to every provider
// that accepts one when it is registered.
//
// Useful for configuring custom transports or injecting mocks in tests.
func WithHTTPClient(hc HTTPClient) ClientOption {
	return func(c *ClientConfig) error {
		if hc == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		c.HTTPClient = hc
		return nil
	}
}

// WithCache sets the response cache for buffered completions.
//
// Streaming completions always bypass the cache.
//
// Example:
//
//	lamp.WithCache(cache.NewMemory())
func WithCache(ca cache.Cache) ClientOption {
	return func(c *ClientConfig) error {
		c.Cache = ca
		return nil
	}
}

// WithCallbacks sets the lifecycle callback registry.
//
// Example:
//
//	registry := callback.NewRegistry()
//	registry.RegisterFailure(logFailures)
//	lamp.WithCallbacks(registry)
func WithCallbacks(registry *callback.Registry) ClientOption {
	return func(c *ClientConfig) error {
		c.Callbacks = registry
		return nil
	}
}

// MaskKey returns a redacted preview of an API key safe for logging:
// the first 4 and last 2 characters with the middle elided.
// Keys too short to preview are fully masked.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-2:]
}
