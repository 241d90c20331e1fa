// Package provider defines the interface that all provider adapters
// implement, and a thread-safe registry for managing them.
//
// A provider adapter isolates one vendor's request/response JSON shape,
// auth header conventions, and base URL behind a uniform interface. No
// code outside a provider package may depend on vendor-specific wire
// field names.
package provider

import (
	"context"

	lamp "github.com/AppleLamps/gpt-lamp"
)

// Capabilities describes what a provider adapter supports.
type Capabilities struct {
	// Completion indicates support for buffered chat completions.
	Completion bool

	// Streaming indicates support for SSE streaming completions.
	Streaming bool

	// Vision indicates support for image content parts.
	Vision bool

	// WebSearch indicates support for the web-search plugin and the
	// ":online" model suffix.
	WebSearch bool

	// Reasoning indicates the adapter surfaces reasoning deltas
	// separately from answer deltas.
	Reasoning bool

	// ImageGeneration indicates support for image generation requests.
	ImageGeneration bool
}

// Provider defines the interface that all provider adapters must implement.
//
// Thread Safety: Implementations must be safe for concurrent use.
// Multiple goroutines may call methods on the same Provider instance
// simultaneously.
type Provider interface {
	// Name returns the provider name (e.g., "openrouter", "openai").
	//
	// The name should be lowercase and unique across all providers.
	// It is used as the provider identifier in the registry and as the
	// first path segment of request model strings.
	Name() string

	// Completion sends a buffered chat completion request.
	Completion(ctx context.Context, req *lamp.CompletionRequest) (*lamp.CompletionResponse, error)

	// CompletionStream sends a streaming chat completion request.
	//
	// The returned stream must be closed by the caller.
	CompletionStream(ctx context.Context, req *lamp.CompletionRequest) (lamp.Stream, error)

	// ImageGeneration generates images from a text prompt.
	//
	// Adapters without image support return an error.
	ImageGeneration(ctx context.Context, req *lamp.ImageGenerationRequest) (*lamp.ImageGenerationResponse, error)

	// Supports returns the capabilities of this adapter.
	//
	// The return type is interface{} to mirror the root package's
	// Provider interface, which cannot reference Capabilities without
	// an import cycle. The concrete value is always Capabilities.
	Supports() interface{}
}
