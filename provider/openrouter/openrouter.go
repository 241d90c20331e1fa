// Package openrouter implements the OpenRouter provider adapter.
//
// OpenRouter exposes an OpenAI-compatible chat-completion API with a few
// extensions this adapter understands: the ":online" model suffix, the
// web-search plugin, reasoning deltas, and prompt cache-control markers.
//
// Basic usage:
//
//	p, err := openrouter.NewProvider(
//	    openrouter.WithAPIKey(os.Getenv("OPENROUTER_API_KEY")),
//	    openrouter.WithReferer("https://example.com"),
//	    openrouter.WithTitle("My App"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stream, err := p.CompletionStream(ctx, &lamp.CompletionRequest{
//	    Model: "openai/gpt-4o",
//	    Messages: []lamp.Message{
//	        {Role: "user", Content: "Hello!"},
//	    },
//	})
package openrouter

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	lamp "github.com/AppleLamps/gpt-lamp"
	"github.com/AppleLamps/gpt-lamp/provider"
)

// DefaultBaseURL is the OpenRouter API base.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Provider implements the provider.Provider interface for OpenRouter.
//
// Thread Safety: Provider is safe for concurrent use.
type Provider struct {
	apiKey       string
	baseURL      string
	referer      string
	title        string
	extraHeaders map[string]string
	extraBody    map[string]any
	httpClient   lamp.HTTPClient
	logger       *slog.Logger
}

// Compile-time interface check
var _ provider.Provider = (*Provider)(nil)

// Option is a functional option for configuring the OpenRouter provider.
type Option func(*Provider)

// NewProvider creates a new OpenRouter provider.
//
// The API key is required; when no WithAPIKey option is given, the
// OPENROUTER_API_KEY environment variable is used.
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
		p.apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if p.apiKey == "" {
		return nil, &lamp.LampError{
			Message:  "OpenRouter API key is required",
			Provider: "openrouter",
		}
	}

	return p, nil
}

// WithAPIKey sets the OpenRouter API key.
func WithAPIKey(key string) Option {
	return func(p *Provider) {
		p.apiKey = key
	}
}

// WithBaseURL sets a custom API base URL.
//
// Useful for proxies or OpenRouter-compatible endpoints. The default is
// DefaultBaseURL.
func WithBaseURL(base string) Option {
	return func(p *Provider) {
		p.baseURL = base
	}
}

// WithReferer sets the HTTP-Referer header OpenRouter uses for app
// attribution and rankings.
func WithReferer(referer string) Option {
	return func(p *Provider) {
		p.referer = referer
	}
}

// WithTitle sets the X-Title header OpenRouter shows alongside the app
// in its dashboard.
func WithTitle(title string) Option {
	return func(p *Provider) {
		p.title = title
	}
}

// WithExtraHeaders sets additional headers sent with every request.
func WithExtraHeaders(headers map[string]string) Option {
	return func(p *Provider) {
		p.extraHeaders = headers
	}
}

// WithExtraBody sets additional top-level JSON fields merged into every
// request body. Useful for OpenRouter routing preferences such as
// "provider" or "transforms".
func WithExtraBody(body map[string]any) Option {
	return func(p *Provider) {
		p.extraBody = body
	}
}

// WithHTTPClient sets a custom HTTP client.
//
// Useful for custom transports, or for injecting mock clients in tests.
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

// Name returns "openrouter".
func (p *Provider) Name() string {
	return "openrouter"
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
		Completion: true,
		Streaming:  true,
		Vision:     true,
		WebSearch:  true,
		Reasoning:  true,
	}
}

// ImageGeneration is not supported by OpenRouter's completion API.
func (p *Provider) ImageGeneration(ctx context.Context, req *lamp.ImageGenerationRequest) (*lamp.ImageGenerationResponse, error) {
	return nil, &lamp.LampError{
		Message:  "openrouter does not support image generation",
		Provider: "openrouter",
	}
}

// newRequest builds an authenticated HTTP request against the adapter's
// base URL, honoring per-request key and base overrides.
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
	if p.referer != "" {
		httpReq.Header.Set("HTTP-Referer", p.referer)
	}
	if p.title != "" {
		httpReq.Header.Set("X-Title", p.title)
	}
	for k, v := range p.extraHeaders {
		httpReq.Header.Set(k, v)
	}

	p.logger.Debug("sending request",
		"provider", "openrouter",
		"url", apiBase+path,
		"api_key", lamp.MaskKey(apiKey))

	return httpReq, nil
}
