package lamp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/AppleLamps/gpt-lamp/cache"
	"github.com/AppleLamps/gpt-lamp/callback"
)

// cacheTTL bounds how long buffered responses stay cached.
const cacheTTL = 1 * time.Hour

// Completion creates a buffered chat completion.
//
// The model field in the request must be in the format
// "provider/model-name", for example "openrouter/openai/gpt-4o".
//
// Transient failures (rate limit, 5xx, timeout, network) are retried
// with linear backoff up to the configured budget; fatal failures
// (auth, bad request, malformed body) surface immediately.
//
// Example:
//
//	resp, err := client.Completion(ctx, &lamp.CompletionRequest{
//	    Model: "openrouter/openai/gpt-4o",
//	    Messages: []lamp.Message{
//	        {Role: "user", Content: "Hello!"},
//	    },
//	})
func (c *client) Completion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	if RequestIDFromContext(ctx) == "" {
		ctx = WithGeneratedRequestID(ctx)
	}
	startTime := time.Now()
	ctx = WithStartTime(ctx, startTime)

	providerName, modelName, err := parseModel(req.Model)
	if err != nil {
		return nil, err
	}
	ctx = WithProvider(ctx, providerName)
	ctx = WithModel(ctx, modelName)

	if c.callbacks != nil {
		beforeEvent := &callback.BeforeRequestEvent{
			RequestID: RequestIDFromContext(ctx),
			Model:     modelName,
			Provider:  providerName,
			Request:   req,
			StartTime: startTime,
		}
		if err := c.callbacks.ExecuteBeforeRequest(ctx, beforeEvent); err != nil {
			return nil, fmt.Errorf("before-request callback failed: %w", err)
		}
	}

	p, err := c.getProvider(providerName)
	if err != nil {
		return nil, fmt.Errorf("provider %q not found (did you register it?)", providerName)
	}

	// Check cache before the API call
	cacheKey := ""
	if c.cache != nil {
		if messagesJSON, err := json.Marshal(req.Messages); err == nil {
			cacheKey = cache.Key(modelName, messagesJSON, req.Temperature, req.MaxTokens)
			if cached, err := c.cache.Get(ctx, cacheKey); err == nil {
				var resp CompletionResponse
				if json.Unmarshal(cached, &resp) == nil {
					c.config.Logger.Debug("completion served from cache",
						"request_id", RequestIDFromContext(ctx),
						"model", modelName)
					return &resp, nil
				}
			}
		}
	}

	// Copy the request with the provider prefix removed; the caller's
	// request is never mutated.
	providerReq := *req
	providerReq.Model = modelName

	// The timeout bounds one physical attempt, not the whole retry
	// loop: a timed-out attempt must leave the shared context alive
	// for the next one.
	var resp *CompletionResponse
	err = c.withRetry(ctx, c.maxRetriesFor(req), func() error {
		attemptCtx, cancel := c.applyTimeout(ctx, req.Timeout)
		defer cancel()
		var callErr error
		resp, callErr = p.Completion(attemptCtx, &providerReq)
		return callErr
	})

	endTime := time.Now()

	if err != nil {
		if c.callbacks != nil {
			c.callbacks.ExecuteFailure(ctx, &callback.FailureEvent{
				RequestID: RequestIDFromContext(ctx),
				Model:     modelName,
				Provider:  providerName,
				Request:   req,
				Error:     err,
				StartTime: startTime,
				EndTime:   endTime,
				Duration:  endTime.Sub(startTime),
			})
		}
		return nil, err
	}

	// Store successful responses; cache errors never fail the request.
	if c.cache != nil && cacheKey != "" && resp != nil {
		if data, err := json.Marshal(resp); err == nil {
			_ = c.cache.Set(ctx, cacheKey, data, cacheTTL)
		}
	}

	if c.callbacks != nil {
		tokens := 0
		if resp.Usage != nil {
			tokens = resp.Usage.TotalTokens
		}
		c.callbacks.ExecuteSuccess(ctx, &callback.SuccessEvent{
			RequestID: RequestIDFromContext(ctx),
			Model:     modelName,
			Provider:  providerName,
			Request:   req,
			Response:  resp,
			StartTime: startTime,
			EndTime:   endTime,
			Duration:  endTime.Sub(startTime),
			Tokens:    tokens,
		})
	}

	return resp, nil
}

// CompletionStream creates a streaming chat completion.
//
// This is the low-level streaming entry point: it performs one physical
// attempt and hands back the live stream. Retry, capability downgrade,
// and callback delivery are layered on top by StreamCompletion.
//
// The returned Stream must be closed by the caller to release resources.
func (c *client) CompletionStream(ctx context.Context, req *CompletionRequest) (Stream, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	if RequestIDFromContext(ctx) == "" {
		ctx = WithGeneratedRequestID(ctx)
	}
	startTime := time.Now()
	ctx = WithStartTime(ctx, startTime)

	providerName, modelName, err := parseModel(req.Model)
	if err != nil {
		return nil, err
	}
	ctx = WithProvider(ctx, providerName)
	ctx = WithModel(ctx, modelName)

	if c.callbacks != nil {
		beforeEvent := &callback.BeforeRequestEvent{
			RequestID: RequestIDFromContext(ctx),
			Model:     modelName,
			Provider:  providerName,
			Request:   req,
			StartTime: startTime,
		}
		if err := c.callbacks.ExecuteBeforeRequest(ctx, beforeEvent); err != nil {
			return nil, fmt.Errorf("before-request callback failed: %w", err)
		}
	}

	p, err := c.getProvider(providerName)
	if err != nil {
		return nil, fmt.Errorf("provider %q not found (did you register it?)", providerName)
	}

	providerReq := *req
	providerReq.Model = modelName

	stream, err := p.CompletionStream(ctx, &providerReq)
	if err != nil {
		if c.callbacks != nil {
			endTime := time.Now()
			c.callbacks.ExecuteFailure(ctx, &callback.FailureEvent{
				RequestID: RequestIDFromContext(ctx),
				Model:     modelName,
				Provider:  providerName,
				Request:   req,
				Error:     err,
				StartTime: startTime,
				EndTime:   endTime,
				Duration:  endTime.Sub(startTime),
			})
		}
		return nil, err
	}

	if c.callbacks != nil {
		return newCallbackStream(ctx, stream, c.callbacks, req, modelName, providerName, startTime), nil
	}
	return stream, nil
}

// applyTimeout derives a context bounded by the request timeout, the
// client default, or neither when both are zero.
func (c *client) applyTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = c.config.DefaultTimeout
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// callbackStream wraps a Stream to execute callbacks for each chunk and
// on completion.
type callbackStream struct {
	underlying Stream
	ctx        context.Context
	callbacks  *callback.Registry
	req        *CompletionRequest
	model      string
	provider   string
	startTime  time.Time
	chunkIndex int
	closed     bool
}

// newCallbackStream creates a new callback-aware stream wrapper.
func newCallbackStream(
	ctx context.Context,
	underlying Stream,
	callbacks *callback.Registry,
	req *CompletionRequest,
	model, provider string,
	startTime time.Time,
) Stream {
	return &callbackStream{
		underlying: underlying,
		ctx:        ctx,
		callbacks:  callbacks,
		req:        req,
		model:      model,
		provider:   provider,
		startTime:  startTime,
	}
}

// Recv receives the next chunk and executes stream callbacks.
func (s *callbackStream) Recv() (*CompletionChunk, error) {
	chunk, err := s.underlying.Recv()

	if err == io.EOF {
		endTime := time.Now()
		s.callbacks.ExecuteSuccess(s.ctx, &callback.SuccessEvent{
			RequestID: RequestIDFromContext(s.ctx),
			Model:     s.model,
			Provider:  s.provider,
			Request:   s.req,
			StartTime: s.startTime,
			EndTime:   endTime,
			Duration:  endTime.Sub(s.startTime),
		})
		return nil, io.EOF
	}

	if err != nil {
		endTime := time.Now()
		s.callbacks.ExecuteFailure(s.ctx, &callback.FailureEvent{
			RequestID: RequestIDFromContext(s.ctx),
			Model:     s.model,
			Provider:  s.provider,
			Request:   s.req,
			Error:     err,
			StartTime: s.startTime,
			EndTime:   endTime,
			Duration:  endTime.Sub(s.startTime),
		})
		return nil, err
	}

	if chunk != nil {
		s.callbacks.ExecuteStream(s.ctx, &callback.StreamEvent{
			RequestID: RequestIDFromContext(s.ctx),
			Model:     s.model,
			Provider:  s.provider,
			Chunk:     chunk,
			Index:     s.chunkIndex,
			Timestamp: time.Now(),
		})
		s.chunkIndex++
	}

	return chunk, nil
}

// Close closes the underlying stream.
//
// Closing before EOF is abnormal termination; no success or failure
// callbacks fire in that case, since the stream may simply have been
// abandoned by the caller.
func (s *callbackStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.underlying.Close()
}
