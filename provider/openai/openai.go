// Package openai implements the OpenAI provider adapter.
//
// It supports buffered and streaming chat completions plus DALL-E image
// generation. OpenRouter extensions (web-search plugin, ":online"
// suffix, reasoning deltas) are not available here.
package openai

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	lamp "github.com/AppleLamps/gpt-lamp"
	"github.com/AppleLamps/gpt-lamp/provider"
)

// DefaultBaseURL is the OpenAI API base.
const DefaultBaseURL = "https://api.openai.com/v1"

// Provider implements the provider.Provider interface for OpenAI.
//
// Thread Safety: Provider is safe for concurrent use.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient lamp.HTTPClient
	logger     *slog.Logger
}

// Compile-time interface check
var _ provider.Provider = (*Provider)(nil)

// Option is a functional option for configuring the OpenAI provider.
type Option func(*Provider)

// NewProvider creates a new OpenAI provider.
//
// The API key is required; when no WithAPIKey option is given, the
// OPENAI_API_KEY environment variable is used.
func NewProvider(opts ...Option) (*Provider, error) {
	p := &Provider{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.apiKey == "" {
		p.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if p.apiKey == "" {
		return nil, &lamp.LampError{
			Message:  "OpenAI API key is required",
			Provider: "openai",
		}
	}

	return p, nil
}

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(p *Provider) {
		p.apiKey = key
	}
}

// WithBaseURL sets a custom API base URL, for OpenAI-compatible
// endpoints or proxies.
func WithBaseURL(base string) Option {
	return func(p *Provider) {
		p.baseURL = base
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client lamp.HTTPClient) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithLogger sets the structured logger for this adapter.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Name returns "openai".
func (p *Provider) Name() string {
	return "openai"
}

// SetHTTPClient replaces the transport. The lamp client calls this when
// the provider is registered on a client configured with its own HTTP
// client.
func (p *Provider) SetHTTPClient(hc lamp.HTTPClient) {
	if hc != nil {
		p.httpClient = hc
	}
}

// Supports reports this adapter's capabilities.
// The concrete type is provider.Capabilities.
func (p *Provider) Supports() interface{} {
	return provider.Capabilities{
		Completion:      true,
		Streaming:       true,
		Vision:          true,
		ImageGeneration: true,
	}
}

// newRequest builds an authenticated HTTP request, honoring per-request
// key and base overrides.
func (p *Provider) newRequest(ctx context.Context, path string, body []byte, apiKey, apiBase string) (*http.Request, error) {
	if apiKey == "" {
		apiKey = p.apiKey
	}
	if apiBase == "" {
		apiBase = p.baseURL
	}

	httpReq, err := newJSONRequest(ctx, apiBase+path, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	p.logger.Debug("sending request",
		"provider", "openai",
		"url", apiBase+path,
		"api_key", lamp.MaskKey(apiKey))

	return httpReq, nil
}
