package lamp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AppleLamps/gpt-lamp/cache"
	"github.com/AppleLamps/gpt-lamp/callback"
)

// Provider defines the interface the client uses to call provider
// adapters.
//
// This is a minimal interface; the full adapter interface with
// capability reporting lives in the provider package.
type Provider interface {
	// Name returns the provider name (e.g., "openrouter", "openai").
	Name() string

	// Completion sends a buffered chat completion request.
	Completion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// CompletionStream sends a streaming chat completion request.
	CompletionStream(ctx context.Context, req *CompletionRequest) (Stream, error)

	// ImageGeneration generates images from a text prompt.
	ImageGeneration(ctx context.Context, req *ImageGenerationRequest) (*ImageGenerationResponse, error)

	// Supports returns the adapter capabilities.
	// Returns provider.Capabilities (interface{} to avoid import cycle).
	Supports() interface{}
}

// Client is the main interface for interacting with completion backends.
//
// Thread Safety: Client is safe for concurrent use from multiple goroutines.
//
// Example:
//
//	client, err := lamp.NewClient(
//	    lamp.WithTimeout(30 * time.Second),
//	    lamp.WithRetries(2, time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
type Client interface {
	// Completion creates a buffered chat completion.
	Completion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// CompletionStream creates a streaming chat completion.
	//
	// The returned Stream must be closed by the caller.
	CompletionStream(ctx context.Context, req *CompletionRequest) (Stream, error)

	// StreamCompletion runs one logical streaming call, delivering
	// output through callbacks. Retries, capability downgrade, and
	// cancellation are handled internally; exactly one of OnComplete or
	// OnError fires per call.
	StreamCompletion(ctx context.Context, req *CompletionRequest, cbs StreamCallbacks) *StreamHandle

	// ImageGeneration generates images from a text prompt.
	ImageGeneration(ctx context.Context, req *ImageGenerationRequest) (*ImageGenerationResponse, error)

	// BuildRequest constructs a completion request from a conversation,
	// defaulting the cache-marker threshold from the client
	// configuration when the options leave it unset.
	BuildRequest(messages []Message, opts BuildOptions) (*CompletionRequest, error)

	// Close closes the client and releases resources.
	Close() error

	// RegisterProvider registers a provider adapter with the client.
	RegisterProvider(p Provider) error
}

// client implements the Client interface.
type client struct {
	config    *ClientConfig
	providers map[string]Provider
	cache     cache.Cache
	callbacks *callback.Registry
	mu        sync.RWMutex
}

// NewClient creates a new client.
//
// Providers must be registered separately with RegisterProvider; this
// avoids import cycles between the root and provider packages.
//
// Example:
//
//	client, _ := lamp.NewClient()
//	p, _ := openrouter.NewProvider(openrouter.WithAPIKey("sk-or-..."))
//	client.RegisterProvider(p)
func NewClient(opts ...ClientOption) (Client, error) {
	config := defaultConfig()

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &client{
		config:    config,
		providers: make(map[string]Provider),
		cache:     config.Cache,
		callbacks: config.Callbacks,
	}, nil
}

// RegisterProvider registers a provider adapter with the client.
func (c *client) RegisterProvider(p Provider) error {
	if p == nil {
		return fmt.Errorf("provider cannot be nil")
	}
	name := p.Name()
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}

	// A client-level HTTP client overrides the provider's own transport.
	if c.config.HTTPClient != nil {
		if hp, ok := p.(interface{ SetHTTPClient(HTTPClient) }); ok {
			hp.SetHTTPClient(c.config.HTTPClient)
		}
	}

	c.providers[name] = p
	return nil
}

// getProvider retrieves a registered provider by name.
func (c *client) getProvider(name string) (Provider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, exists := c.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider %q not found", name)
	}
	return p, nil
}

// parseModel parses a model string into provider and model name.
//
// Format: "provider/model-name"
// Examples: "openrouter/openai/gpt-4o", "openai/gpt-4o"
//
// Returns an error if the format is invalid.
func parseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid model format: %q (expected format: provider/model-name)", model)
	}

	provider = parts[0]
	modelName = parts[1]

	if provider == "" {
		return "", "", fmt.Errorf("provider name is empty in model: %q", model)
	}
	if modelName == "" {
		return "", "", fmt.Errorf("model name is empty in model: %q", model)
	}

	return provider, modelName, nil
}

// withRetry executes fn with bounded retry and linear backoff.
//
// Retryable failures are reattempted up to maxRetries times; the wait
// before retry N is N * RetryDelay. No delay precedes the first attempt.
// Non-retryable failures return immediately.
func (c *client) withRetry(ctx context.Context, maxRetries int, fn func() error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
		if attempt == maxRetries {
			return fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, err)
		}

		delay := c.retryDelay(attempt)
		var rateErr *RateLimitError
		if errors.As(err, &rateErr) && rateErr.RetryAfter > delay {
			delay = rateErr.RetryAfter
		}
		c.config.Logger.Debug("retrying after transient failure",
			"attempt", attempt+1,
			"delay", delay,
			"err", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// retryDelay computes the linear backoff delay before retry attempt+1:
// (attempt+1) * RetryDelay.
func (c *client) retryDelay(attempt int) time.Duration {
	return time.Duration(attempt+1) * c.config.RetryDelay
}

// isRetryable checks if an error represents a retryable condition.
//
// The typed verdict is consulted before anything else: a TimeoutError
// carries the attempt's context.DeadlineExceeded as its cause, and that
// attempt-scoped deadline must not read as cancellation of the logical
// call. Bare context errors from the logical call stay non-retryable.
func isRetryable(err error) bool {
	type retryable interface {
		IsRetryable() bool
	}
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}

// maxRetriesFor returns the retry budget for one request: the request
// override when set, the client default otherwise.
func (c *client) maxRetriesFor(req *CompletionRequest) int {
	if req.NumRetries > 0 {
		return req.NumRetries
	}
	return c.config.MaxRetries
}

// Close closes the client and releases resources.
//
// After calling Close, the client should not be used.
func (c *client) Close() error {
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			return fmt.Errorf("failed to close cache: %w", err)
		}
	}
	return nil
}
