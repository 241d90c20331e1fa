package lamp

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	contextKeyRequestID contextKey = "lamp_request_id"
	contextKeyProvider  contextKey = "lamp_provider"
	contextKeyModel     contextKey = "lamp_model"
	contextKeyStartTime contextKey = "lamp_start_time"
)

// WithRequestID adds a request ID to the context.
//
// The request ID is used to correlate a logical call across retries,
// callbacks, and logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

// RequestIDFromContext retrieves the request ID from the context.
// Returns an empty string if no request ID is found.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// WithGeneratedRequestID adds a freshly generated request ID to the context.
func WithGeneratedRequestID(ctx context.Context) context.Context {
	return WithRequestID(ctx, "req_"+uuid.NewString())
}

// WithProvider adds the provider name to the context.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, contextKeyProvider, provider)
}

// ProviderFromContext retrieves the provider name from the context.
// Returns an empty string if no provider is found.
func ProviderFromContext(ctx context.Context) string {
	if provider, ok := ctx.Value(contextKeyProvider).(string); ok {
		return provider
	}
	return ""
}

// WithModel adds the model name to the context.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, contextKeyModel, model)
}

// ModelFromContext retrieves the model name from the context.
// Returns an empty string if no model is found.
func ModelFromContext(ctx context.Context) string {
	if model, ok := ctx.Value(contextKeyModel).(string); ok {
		return model
	}
	return ""
}

// WithStartTime adds the logical call start time to the context.
func WithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyStartTime, t)
}

// StartTimeFromContext retrieves the logical call start time from the context.
// Returns the zero time if not set.
func StartTimeFromContext(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyStartTime).(time.Time); ok {
		return t
	}
	return time.Time{}
}
