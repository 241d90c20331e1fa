// Package lamp provides a Go client for OpenRouter-compatible
// chat-completion APIs.
//
// The client supports buffered and streaming completions, multimodal
// message content, automatic retry with linear backoff, and graceful
// capability downgrade when a backend rejects an optional feature such
// as the web-search plugin.
//
// Basic usage:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//	    "os"
//
//	    lamp "github.com/AppleLamps/gpt-lamp"
//	    "github.com/AppleLamps/gpt-lamp/provider/openrouter"
//	)
//
//	func main() {
//	    p, err := openrouter.NewProvider(
//	        openrouter.WithAPIKey(os.Getenv("OPENROUTER_API_KEY")),
//	    )
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    client, err := lamp.NewClient()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer client.Close()
//	    client.RegisterProvider(p)
//
//	    resp, err := client.Completion(context.Background(), &lamp.CompletionRequest{
//	        Model: "openrouter/openai/gpt-4o",
//	        Messages: []lamp.Message{
//	            {Role: "user", Content: "Hello!"},
//	        },
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(resp.Choices[0].Message.Content)
//	}
package lamp

import (
	"time"
)

// Message roles understood by chat-completion backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content part types for multimodal messages.
const (
	PartText  = "text"
	PartImage = "image_url"
	PartVideo = "video_url"
	PartAudio = "input_audio"
)

// CompletionRequest represents a chat completion request.
//
// The Model field uses the format "provider/model-name", for example
// "openrouter/openai/gpt-4o": the first path segment selects the
// registered provider adapter, the remainder is the provider's model id.
//
// Thread Safety: CompletionRequest is safe for concurrent reads after
// creation. The Metadata field should not be modified concurrently
// without external synchronization.
type CompletionRequest struct {
	// Model specifies the model to use. Format: "provider/model-name".
	Model string `json:"model"`

	// Messages contains the conversation history, oldest first.
	Messages []Message `json:"messages"`

	// Temperature controls randomness in the output (0.0 to 1.0).
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens specifies the maximum number of tokens to generate.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// Plugins lists backend plugins to activate for this request.
	// A nil slice omits the field from the wire request entirely;
	// absence, not an empty list, is the "no plugins" signal.
	Plugins []Plugin `json:"plugins,omitempty"`

	// APIKey overrides the provider API key for this request.
	APIKey string `json:"api_key,omitempty"`

	// APIBase overrides the provider API base URL for this request.
	APIBase string `json:"api_base,omitempty"`

	// Metadata contains arbitrary key-value pairs for callbacks and tracking.
	Metadata map[string]any `json:"metadata,omitempty"`

	// NumRetries overrides the client's retry budget for this request.
	// Zero means "use the client default".
	NumRetries int `json:"num_retries,omitempty"`

	// Timeout specifies the maximum duration for this request.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Plugin activates an optional backend capability, such as web search.
type Plugin struct {
	// ID identifies the plugin. The web-search plugin uses "web".
	ID string `json:"id"`

	// MaxResults caps the number of search results fed to the model.
	MaxResults int `json:"max_results,omitempty"`

	// SearchPrompt customizes how search results are presented to the model.
	SearchPrompt string `json:"search_prompt,omitempty"`
}

// Message represents a single message in a conversation.
// Supports both simple text content and multimodal content.
//
// Thread Safety: Message is safe for concurrent reads after creation.
type Message struct {
	// Role identifies the message sender.
	// Valid values: "system", "user", "assistant".
	Role string `json:"role"`

	// Content can be either:
	// - string: simple text content
	// - []ContentPart: multimodal content (text, images, video, audio)
	Content any `json:"content"`

	// Name is an optional name for the participant.
	Name string `json:"name,omitempty"`
}

// ContentPart represents a component of multimodal message content.
// A message can contain multiple parts; parts preserve their order,
// media interleaves with text only by position in the array.
type ContentPart struct {
	// Type specifies the content type.
	// Valid values: "text", "image_url", "video_url", "input_audio".
	Type string `json:"type"`

	// Text contains the text content (when Type is "text").
	Text string `json:"text,omitempty"`

	// ImageURL contains the image reference (when Type is "image_url").
	ImageURL *ImageURL `json:"image_url,omitempty"`

	// VideoURL contains the video reference (when Type is "video_url").
	VideoURL *VideoURL `json:"video_url,omitempty"`

	// InputAudio contains the audio reference (when Type is "input_audio").
	InputAudio *AudioURL `json:"input_audio,omitempty"`

	// CacheControl marks this part as cacheable/reusable server-side.
	// Set by the request builder on long text parts; at most one part
	// per message carries the marker.
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// ImageURL represents an image reference in multimodal content.
type ImageURL struct {
	// URL is the image URL or base64-encoded data URI.
	// Formats:
	// - HTTP(S) URL: "https://example.com/image.jpg"
	// - Data URI: "data:image/jpeg;base64,..."
	URL string `json:"url"`

	// Detail specifies the image detail level for vision models.
	// Valid values: "auto" (default), "low", "high".
	Detail string `json:"detail,omitempty"`
}

// VideoURL represents a video reference in multimodal content.
type VideoURL struct {
	// URL is the video URL or base64-encoded data URI.
	URL string `json:"url"`

	// Detail specifies the detail level for video-capable models.
	Detail string `json:"detail,omitempty"`
}

// AudioURL represents an audio reference in multimodal content.
type AudioURL struct {
	// URL is the audio URL or base64-encoded data URI.
	URL string `json:"url"`

	// Detail specifies the detail level for audio-capable models.
	Detail string `json:"detail,omitempty"`
}

// CacheControl marks message content as reusable server-side.
// Backends that support prompt caching skip reprocessing marked content
// on subsequent requests.
type CacheControl struct {
	// Type is the cache strategy. Currently only "ephemeral" is defined.
	Type string `json:"type"`
}

// EphemeralCache returns the standard long-context cache marker.
func EphemeralCache() *CacheControl {
	return &CacheControl{Type: "ephemeral"}
}

// CompletionResponse represents a completion response from the provider.
//
// Thread Safety: CompletionResponse is safe for concurrent reads.
type CompletionResponse struct {
	// ID is a unique identifier for this completion.
	ID string `json:"id"`

	// Object is the object type (e.g., "chat.completion").
	Object string `json:"object"`

	// Created is the Unix timestamp (in seconds) of when the completion was created.
	Created int64 `json:"created"`

	// Model is the model used for this completion.
	Model string `json:"model"`

	// Choices contains the generated completion choices.
	Choices []Choice `json:"choices"`

	// Usage contains token usage information for this request.
	Usage *Usage `json:"usage,omitempty"`
}

// AnswerText returns the first choice's message content as a string,
// or "" if the response holds no text answer.
func (r *CompletionResponse) AnswerText() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	if s, ok := r.Choices[0].Message.Content.(string); ok {
		return s
	}
	return ""
}

// Choice represents a single completion choice in the response.
type Choice struct {
	// Index is the zero-based index of this choice in the Choices array.
	Index int `json:"index"`

	// Message contains the generated message.
	Message Message `json:"message"`

	// FinishReason explains why the model stopped generating.
	// Valid values: "stop", "length", "content_filter".
	FinishReason string `json:"finish_reason"`
}

// Usage represents token usage statistics for a request.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the generated completion.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens (prompt + completion).
	TotalTokens int `json:"total_tokens"`
}

// CompletionChunk represents a single chunk in a streaming response.
type CompletionChunk struct {
	// ID is a unique identifier for this completion stream.
	ID string `json:"id"`

	// Object is the object type (e.g., "chat.completion.chunk").
	Object string `json:"object"`

	// Created is the Unix timestamp (in seconds) of when the completion was created.
	Created int64 `json:"created"`

	// Model is the model used for this completion.
	Model string `json:"model"`

	// Choices contains the streaming choices.
	Choices []ChunkChoice `json:"choices"`

	// Usage contains cumulative token usage (only present in the final chunk).
	Usage *Usage `json:"usage,omitempty"`
}

// ChunkChoice represents a single choice in a streaming chunk.
type ChunkChoice struct {
	// Index is the zero-based index of this choice.
	Index int `json:"index"`

	// Delta contains the incremental content for this chunk.
	Delta MessageDelta `json:"delta"`

	// FinishReason explains why the model stopped (only present in the final chunk).
	FinishReason *string `json:"finish_reason"`
}

// MessageDelta represents incremental message content in a streaming response.
// Clients should accumulate deltas to build the complete message. Answer
// tokens arrive in Content; models that expose an intermediate "thinking"
// trace deliver it separately in Reasoning, interleaved in wire order.
type MessageDelta struct {
	// Role is the message role (only present in the first chunk).
	Role string `json:"role,omitempty"`

	// Content contains the incremental answer text.
	Content string `json:"content,omitempty"`

	// Reasoning contains the incremental reasoning text, if the model
	// emits a reasoning trace distinct from its final answer.
	Reasoning string `json:"reasoning,omitempty"`
}

// Stream represents a streaming response from a provider.
//
// The caller must call Close() when done to release resources.
// Recv() should be called in a loop until it returns io.EOF.
//
// Thread Safety: Stream is NOT safe for concurrent use.
// Only one goroutine should call Recv() at a time.
//
// Example:
//
//	stream, err := client.CompletionStream(ctx, req)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	for {
//	    chunk, err := stream.Recv()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    // Process chunk...
//	}
type Stream interface {
	// Recv receives the next chunk from the stream.
	//
	// Returns io.EOF when the stream is complete.
	// After receiving io.EOF or any error, subsequent calls return the same error.
	Recv() (*CompletionChunk, error)

	// Close closes the stream and releases resources.
	//
	// It is safe to call Close multiple times.
	Close() error
}

// ImageGenerationRequest represents a request to generate images from a
// text prompt.
type ImageGenerationRequest struct {
	// Model specifies the image model. Format: "provider/model-name".
	Model string `json:"model"`

	// Prompt is the text description of the desired image(s).
	Prompt string `json:"prompt"`

	// N specifies how many images to generate.
	N *int `json:"n,omitempty"`

	// Size specifies the image dimensions, e.g. "1024x1024".
	Size string `json:"size,omitempty"`

	// Quality controls the generation quality ("standard", "hd").
	Quality string `json:"quality,omitempty"`

	// ResponseFormat controls how images are returned: "url" (default)
	// or "b64_json".
	ResponseFormat string `json:"response_format,omitempty"`

	// Timeout specifies the maximum duration for this request.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// ImageGenerationResponse represents generated images.
type ImageGenerationResponse struct {
	// Created is the Unix timestamp of generation.
	Created int64 `json:"created"`

	// Data contains the generated images.
	Data []GeneratedImage `json:"data"`

	// Provider is the provider that served the request. Set by the client.
	Provider string `json:"provider,omitempty"`

	// Model is the model that generated the images. Set by the client.
	Model string `json:"model,omitempty"`
}

// GeneratedImage is a single generated image.
type GeneratedImage struct {
	// URL is the image URL (when ResponseFormat is "url").
	URL string `json:"url,omitempty"`

	// B64JSON is the base64-encoded image (when ResponseFormat is "b64_json").
	B64JSON string `json:"b64_json,omitempty"`

	// RevisedPrompt is the prompt after any backend revision.
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// Float64Ptr returns a pointer to the given float64.
// Convenience helper for optional request fields.
func Float64Ptr(f float64) *float64 { return &f }

// IntPtr returns a pointer to the given int.
// Convenience helper for optional request fields.
func IntPtr(i int) *int { return &i }
