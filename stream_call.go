package lamp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/AppleLamps/gpt-lamp/callback"
)

// StreamCallbacks is the output contract of one logical streaming call.
//
// OnChunk and OnReasoning fire in exact wire arrival order. Exactly one
// of OnComplete or OnError fires per logical call; after either, or
// after cancellation, no further callbacks fire.
type StreamCallbacks struct {
	// OnChunk receives each incremental answer fragment.
	OnChunk func(text string)

	// OnReasoning receives each incremental reasoning fragment.
	// Optional; reasoning deltas are dropped when nil.
	OnReasoning func(text string)

	// OnRetry fires before a retry or capability-downgrade attempt,
	// with the 1-based number of the attempt about to start and the
	// error that caused it. Partial output delivered by the failed
	// attempt must be discarded: the new attempt restarts from scratch.
	// Optional.
	OnRetry func(attempt int, err error)

	// OnComplete fires once when the stream finishes successfully.
	OnComplete func()

	// OnError fires once with a terminal error after retries are
	// exhausted or a fatal failure occurs.
	OnError func(err error)
}

// StreamHandle controls one in-flight logical streaming call.
type StreamHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	call   *streamCall
}

// Cancel aborts the logical call: delivery stops immediately, the
// network stream is released, and any late-arriving error from the
// discarded attempt is swallowed. No callbacks, not even OnError,
// fire after Cancel.
//
// It is safe to call Cancel multiple times, and after completion.
func (h *StreamHandle) Cancel() {
	h.call.latch.abort()
	h.cancel()
}

// Done returns a channel closed when the logical call reaches a
// terminal state (completed, failed, or aborted).
func (h *StreamHandle) Done() <-chan struct{} {
	return h.done
}

// Answer returns the accumulated answer text of the completed call.
// Empty until OnComplete has fired: partial output from failed or
// aborted attempts is never exposed as final.
func (h *StreamHandle) Answer() string {
	return h.call.finalAnswer()
}

// Reasoning returns the accumulated reasoning text of the completed call.
// Empty until OnComplete has fired.
func (h *StreamHandle) Reasoning() string {
	return h.call.finalReasoning()
}

// errAborted is the internal sentinel for "the logical call was cancelled".
var errAborted = errors.New("call aborted")

// StreamCompletion runs one logical streaming call.
//
// The conversation is sent to the provider; answer and reasoning tokens
// are delivered through callbacks as they arrive. Transient failures are
// retried with linear backoff (fresh stream state per attempt); a 400
// rejection attributable to the web-search plugin triggers exactly one
// downgraded resubmission with the plugin removed and the model's
// online suffix stripped. Each physical attempt is bounded by the
// request timeout (default 30 seconds).
//
// The returned handle cancels the call and reports terminal state.
// Attempts are strictly sequential, never speculative.
//
// Example:
//
//	handle := client.StreamCompletion(ctx, req, lamp.StreamCallbacks{
//	    OnChunk:    func(text string) { fmt.Print(text) },
//	    OnComplete: func() { fmt.Println() },
//	    OnError:    func(err error) { log.Println(err) },
//	})
//	<-handle.Done()
func (c *client) StreamCompletion(ctx context.Context, req *CompletionRequest, cbs StreamCallbacks) *StreamHandle {
	if RequestIDFromContext(ctx) == "" {
		ctx = WithGeneratedRequestID(ctx)
	}

	callCtx, cancel := context.WithCancel(ctx)
	call := &streamCall{
		client: c,
		req:    req,
		cbs:    cbs,
	}
	handle := &StreamHandle{
		cancel: cancel,
		done:   make(chan struct{}),
		call:   call,
	}

	go func() {
		defer close(handle.done)
		defer cancel()
		call.run(callCtx)
	}()

	return handle
}

// streamState is the per-attempt accumulator. A new retry attempt gets
// a fresh instance; partial output from a discarded attempt never leaks.
type streamState struct {
	answer    strings.Builder
	reasoning strings.Builder
	chunks    int
}

// streamCall owns the lifecycle of one logical call across physical
// attempts. The latch is the only state shared between attempts.
type streamCall struct {
	client *client
	req    *CompletionRequest
	cbs    StreamCallbacks
	latch  latch

	mu        sync.Mutex
	answer    string
	reasoning string
}

func (s *streamCall) run(ctx context.Context) {
	c := s.client
	startTime := time.Now()
	ctx = WithStartTime(ctx, startTime)

	providerName, modelName, err := parseModel(s.req.Model)
	if err != nil {
		s.fail(ctx, err, 0, startTime, "", "")
		return
	}
	ctx = WithProvider(ctx, providerName)
	ctx = WithModel(ctx, modelName)

	if c.callbacks != nil {
		beforeEvent := &callback.BeforeRequestEvent{
			RequestID: RequestIDFromContext(ctx),
			Model:     modelName,
			Provider:  providerName,
			Request:   s.req,
			StartTime: startTime,
		}
		if err := c.callbacks.ExecuteBeforeRequest(ctx, beforeEvent); err != nil {
			s.fail(ctx, fmt.Errorf("before-request callback failed: %w", err), 0, startTime, providerName, modelName)
			return
		}
	}

	p, err := c.getProvider(providerName)
	if err != nil {
		s.fail(ctx, fmt.Errorf("provider %q not found (did you register it?)", providerName), 0, startTime, providerName, modelName)
		return
	}

	providerReq := *s.req
	providerReq.Model = modelName

	maxRetries := c.maxRetriesFor(s.req)
	attempts := 0
	retries := 0
	downgraded := false

	for {
		attempts++
		state := &streamState{}
		err := s.runAttempt(ctx, p, &providerReq, state)
		if err == nil {
			s.complete(ctx, startTime, providerName, modelName)
			return
		}
		if errors.Is(err, errAborted) || ctx.Err() != nil {
			// Cancelled: terminal silence, late errors swallowed.
			return
		}

		// Capability downgrade: one resubmission with the plugin
		// removed. Does not consume the retry budget.
		var pluginErr *PluginUnsupportedError
		if errors.As(err, &pluginErr) && !downgraded && len(providerReq.Plugins) > 0 {
			downgraded = true
			c.config.Logger.Info("web-search plugin rejected, downgrading request",
				"request_id", RequestIDFromContext(ctx),
				"model", providerReq.Model)
			providerReq = *DowngradeRequest(&providerReq)
			s.notifyRetry(attempts+1, err)
			continue
		}

		if !isRetryable(err) || retries >= maxRetries {
			s.fail(ctx, describeTerminal(err, attempts), attempts, startTime, providerName, modelName)
			return
		}

		retries++
		delay := c.retryDelay(retries - 1)
		var rateErr *RateLimitError
		if errors.As(err, &rateErr) && rateErr.RetryAfter > delay {
			delay = rateErr.RetryAfter
		}
		c.config.Logger.Debug("stream attempt failed, retrying",
			"request_id", RequestIDFromContext(ctx),
			"attempt", attempts,
			"delay", delay,
			"err", err)
		s.notifyRetry(attempts+1, err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// runAttempt performs one physical streaming attempt, delivering chunks
// through the latch-guarded callbacks. Returns nil on completion,
// errAborted when the logical call was cancelled, or the classified
// attempt error.
func (s *streamCall) runAttempt(ctx context.Context, p Provider, req *CompletionRequest, state *streamState) error {
	c := s.client

	// Each physical attempt gets its own timeout, measured from its
	// request start.
	attemptCtx, cancel := c.applyTimeout(ctx, req.Timeout)
	defer cancel()

	stream, err := p.CompletionStream(attemptCtx, req)
	if err != nil {
		return s.classifyAttemptErr(ctx, attemptCtx, err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			// Explicit [DONE] and natural stream end both land here.
			s.commit(state)
			return nil
		}
		if err != nil {
			return s.classifyAttemptErr(ctx, attemptCtx, err)
		}
		if chunk == nil || len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Reasoning != "" {
			state.reasoning.WriteString(delta.Reasoning)
			if !s.latch.deliver(func() {
				if s.cbs.OnReasoning != nil {
					s.cbs.OnReasoning(delta.Reasoning)
				}
			}) {
				return errAborted
			}
		}
		if delta.Content != "" {
			state.answer.WriteString(delta.Content)
			if !s.latch.deliver(func() {
				if s.cbs.OnChunk != nil {
					s.cbs.OnChunk(delta.Content)
				}
			}) {
				return errAborted
			}
		}

		state.chunks++
		if c.callbacks != nil {
			c.callbacks.ExecuteStream(ctx, &callback.StreamEvent{
				RequestID: RequestIDFromContext(ctx),
				Model:     ModelFromContext(ctx),
				Provider:  ProviderFromContext(ctx),
				Chunk:     chunk,
				Index:     state.chunks - 1,
				Timestamp: time.Now(),
			})
		}
	}
}

// classifyAttemptErr separates cancellation of the logical call from the
// per-attempt timeout, and wraps the latter as a retryable TimeoutError.
func (s *streamCall) classifyAttemptErr(callCtx, attemptCtx context.Context, err error) error {
	if callCtx.Err() != nil || s.latch.isDone() {
		return errAborted
	}
	if attemptCtx.Err() != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return NewTimeoutError("request timed out", ProviderFromContext(callCtx), err)
	}
	return err
}

// commit records the successful attempt's accumulated output so the
// handle can expose it after completion.
func (s *streamCall) commit(state *streamState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answer = state.answer.String()
	s.reasoning = state.reasoning.String()
}

func (s *streamCall) finalAnswer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answer
}

func (s *streamCall) finalReasoning() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reasoning
}

// complete fires OnComplete exactly once, plus success lifecycle hooks.
func (s *streamCall) complete(ctx context.Context, startTime time.Time, providerName, modelName string) {
	fired := s.latch.settle(func() {
		if s.cbs.OnComplete != nil {
			s.cbs.OnComplete()
		}
	})
	if !fired {
		return
	}

	if s.client.callbacks != nil {
		endTime := time.Now()
		s.client.callbacks.ExecuteSuccess(ctx, &callback.SuccessEvent{
			RequestID: RequestIDFromContext(ctx),
			Model:     modelName,
			Provider:  providerName,
			Request:   s.req,
			StartTime: startTime,
			EndTime:   endTime,
			Duration:  endTime.Sub(startTime),
		})
	}
}

// fail fires OnError exactly once, plus failure lifecycle hooks.
func (s *streamCall) fail(ctx context.Context, err error, attempts int, startTime time.Time, providerName, modelName string) {
	fired := s.latch.settle(func() {
		if s.cbs.OnError != nil {
			s.cbs.OnError(err)
		}
	})
	if !fired {
		return
	}

	if s.client.callbacks != nil {
		endTime := time.Now()
		s.client.callbacks.ExecuteFailure(ctx, &callback.FailureEvent{
			RequestID: RequestIDFromContext(ctx),
			Model:     modelName,
			Provider:  providerName,
			Request:   s.req,
			Error:     err,
			Attempts:  attempts,
			StartTime: startTime,
			EndTime:   endTime,
			Duration:  endTime.Sub(startTime),
		})
	}
}

func (s *streamCall) notifyRetry(attempt int, err error) {
	if s.cbs.OnRetry == nil {
		return
	}
	s.latch.deliver(func() {
		s.cbs.OnRetry(attempt, err)
	})
}

// describeTerminal wraps an exhausted-retries error with a
// user-presentable message.
func describeTerminal(err error, attempts int) error {
	if attempts > 1 && isRetryable(err) {
		return fmt.Errorf("request failed after %d attempts: %w", attempts, err)
	}
	return err
}

// latch is the write-once completion guard for one logical call.
//
// It is the only mutable state shared between attempts: once settled
// (completed, failed, or aborted) every later delivery is inert. The
// callback runs under the lock so that no delivery can interleave
// with or follow settlement.
type latch struct {
	mu   sync.Mutex
	done bool
}

// deliver runs fn unless the latch has settled.
// Reports whether fn ran.
func (l *latch) deliver(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return false
	}
	fn()
	return true
}

// settle marks the latch done and runs fn, unless already settled.
// Reports whether fn ran.
func (l *latch) settle(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return false
	}
	l.done = true
	fn()
	return true
}

// abort settles the latch without running anything: all subsequent
// deliveries and settlements are inert.
func (l *latch) abort() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done = true
}

// isDone reports whether the latch has settled.
func (l *latch) isDone() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}
