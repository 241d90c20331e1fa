// Package callback provides lifecycle hooks for chat-completion requests.
//
// Callbacks allow tracking, logging, and monitoring at different stages
// of the request lifecycle: before request, after success, after failure,
// and per streamed chunk.
//
// Thread Safety: All callback types must be safe for concurrent calls.
// The Registry manages callbacks thread-safely using the snapshot pattern.
package callback

import (
	"context"
	"time"
)

// BeforeRequestCallback is called before sending a request to the provider.
//
// The callback can inspect the event, or return an error to abort the
// request. If an error is returned, the request is not sent and the
// error is returned to the caller.
type BeforeRequestCallback func(ctx context.Context, event *BeforeRequestEvent) error

// SuccessCallback is called after a successful response.
//
// Success callbacks are informational only.
type SuccessCallback func(ctx context.Context, event *SuccessEvent)

// FailureCallback is called after a failed request.
//
// Failure callbacks are informational only. They cannot modify the error
// or prevent it from being returned to the caller.
type FailureCallback func(ctx context.Context, event *FailureEvent)

// StreamCallback is called for each streaming chunk.
type StreamCallback func(ctx context.Context, event *StreamEvent)

// BeforeRequestEvent contains data for before-request callbacks.
type BeforeRequestEvent struct {
	// RequestID uniquely identifies the logical call.
	RequestID string

	// Model is the model name (without provider prefix).
	Model string

	// Provider is the provider adapter name.
	Provider string

	// Request is the completion request being sent.
	// Type: *lamp.CompletionRequest (interface{} to avoid circular import).
	Request interface{}

	// StartTime is when the logical call started.
	StartTime time.Time
}

// SuccessEvent contains data for success callbacks.
type SuccessEvent struct {
	// RequestID uniquely identifies the logical call.
	RequestID string

	// Model is the model name (without provider prefix).
	Model string

	// Provider is the provider adapter name.
	Provider string

	// Request is the completion request that was sent.
	Request interface{}

	// Response is the completion response received.
	// Nil for streaming calls, which have no single response object.
	Response interface{}

	// StartTime is when the logical call started.
	StartTime time.Time

	// EndTime is when the call completed.
	EndTime time.Time

	// Duration is EndTime - StartTime.
	Duration time.Duration

	// Tokens is the total token count, when the provider reported usage.
	Tokens int
}

// FailureEvent contains data for failure callbacks.
type FailureEvent struct {
	// RequestID uniquely identifies the logical call.
	RequestID string

	// Model is the model name (without provider prefix).
	Model string

	// Provider is the provider adapter name.
	Provider string

	// Request is the completion request that was sent.
	Request interface{}

	// Error is the terminal error after any retries were exhausted.
	Error error

	// Attempts is the number of physical attempts made.
	Attempts int

	// StartTime is when the logical call started.
	StartTime time.Time

	// EndTime is when the call failed.
	EndTime time.Time

	// Duration is EndTime - StartTime.
	Duration time.Duration
}

// StreamEvent contains data for per-chunk stream callbacks.
type StreamEvent struct {
	// RequestID uniquely identifies the logical call.
	RequestID string

	// Model is the model name (without provider prefix).
	Model string

	// Provider is the provider adapter name.
	Provider string

	// Chunk is the streamed chunk.
	// Type: *lamp.CompletionChunk (interface{} to avoid circular import).
	Chunk interface{}

	// Index is the zero-based position of this chunk in the stream.
	Index int

	// Timestamp is when the chunk was received.
	Timestamp time.Time
}
