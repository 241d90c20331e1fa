package lamp

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider is a minimal in-package provider double whose stream
// behavior is scripted per attempt.
type scriptedProvider struct {
	name         string
	streamFn     func(ctx context.Context, req *CompletionRequest) (Stream, error)
	completionFn func(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	mu       sync.Mutex
	requests []*CompletionRequest
}

func (p *scriptedProvider) Name() string {
	if p.name == "" {
		return "mock"
	}
	return p.name
}

func (p *scriptedProvider) Completion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	p.mu.Lock()
	reqCopy := *req
	p.requests = append(p.requests, &reqCopy)
	p.mu.Unlock()
	if p.completionFn == nil {
		return nil, errors.New("not scripted")
	}
	return p.completionFn(ctx, req)
}

func (p *scriptedProvider) CompletionStream(ctx context.Context, req *CompletionRequest) (Stream, error) {
	p.mu.Lock()
	reqCopy := *req
	p.requests = append(p.requests, &reqCopy)
	p.mu.Unlock()
	return p.streamFn(ctx, req)
}

func (p *scriptedProvider) ImageGeneration(ctx context.Context, req *ImageGenerationRequest) (*ImageGenerationResponse, error) {
	return nil, errors.New("not supported")
}

func (p *scriptedProvider) Supports() interface{} { return nil }

func (p *scriptedProvider) attemptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *scriptedProvider) request(i int) *CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[i]
}

// scriptedStream yields chunks in order, then finalErr or io.EOF.
type scriptedStream struct {
	chunks   []*CompletionChunk
	finalErr error
	index    int
}

func (s *scriptedStream) Recv() (*CompletionChunk, error) {
	if s.index >= len(s.chunks) {
		if s.finalErr != nil {
			return nil, s.finalErr
		}
		return nil, io.EOF
	}
	chunk := s.chunks[s.index]
	s.index++
	return chunk, nil
}

func (s *scriptedStream) Close() error { return nil }

func textChunk(text string) *CompletionChunk {
	return &CompletionChunk{
		Choices: []ChunkChoice{{Delta: MessageDelta{Content: text}}},
	}
}

func reasoningChunk(text string) *CompletionChunk {
	return &CompletionChunk{
		Choices: []ChunkChoice{{Delta: MessageDelta{Reasoning: text}}},
	}
}

// collector records callback invocations in arrival order.
type collector struct {
	mu            sync.Mutex
	events        []string
	chunks        []string
	reasoning     []string
	retryAttempts []int
	retries       int
	completes  int
	failures   int
	terminalEr error
}

func (c *collector) callbacks() StreamCallbacks {
	return StreamCallbacks{
		OnChunk: func(text string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.events = append(c.events, "chunk:"+text)
			c.chunks = append(c.chunks, text)
		},
		OnReasoning: func(text string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.events = append(c.events, "reasoning:"+text)
			c.reasoning = append(c.reasoning, text)
		},
		OnRetry: func(attempt int, err error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.events = append(c.events, "retry")
			c.retryAttempts = append(c.retryAttempts, attempt)
			c.retries++
		},
		OnComplete: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.events = append(c.events, "complete")
			c.completes++
		},
		OnError: func(err error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.events = append(c.events, "error")
			c.failures++
			c.terminalEr = err
		},
	}
}

func (c *collector) snapshot() collector {
	c.mu.Lock()
	defer c.mu.Unlock()
	return collector{
		events:        append([]string(nil), c.events...),
		chunks:        append([]string(nil), c.chunks...),
		reasoning:     append([]string(nil), c.reasoning...),
		retryAttempts: append([]int(nil), c.retryAttempts...),
		retries:       c.retries,
		completes:     c.completes,
		failures:      c.failures,
		terminalEr:    c.terminalEr,
	}
}

func newStreamTestClient(t *testing.T, p *scriptedProvider, opts ...ClientOption) Client {
	t.Helper()
	opts = append([]ClientOption{WithRetries(2, time.Millisecond)}, opts...)
	c, err := NewClient(opts...)
	require.NoError(t, err)
	require.NoError(t, c.RegisterProvider(p))
	t.Cleanup(func() { c.Close() })
	return c
}

func waitDone(t *testing.T, handle *StreamHandle) {
	t.Helper()
	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stream call did not finish")
	}
}

func TestStreamCompletionDeliversChunksInOrder(t *testing.T) {
	p := &scriptedProvider{
		streamFn: func(ctx context.Context, req *CompletionRequest) (Stream, error) {
			return &scriptedStream{chunks: []*CompletionChunk{
				textChunk("Hi"),
				textChunk(" there"),
			}}, nil
		},
	}
	c := newStreamTestClient(t, p)

	var col collector
	handle := c.StreamCompletion(context.Background(), &CompletionRequest{
		Model:    "mock/test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}, col.callbacks())
	waitDone(t, handle)

	got := col.snapshot()
	assert.Equal(t, []string{"chunk:Hi", "chunk: there", "complete"}, got.events)
	assert.Equal(t, 1, got.completes)
	assert.Equal(t, 0, got.failures)
	assert.Equal(t, "Hi there", handle.Answer())
}

func TestStreamCompletionInterleavesReasoning(t *testing.T) {
	p := &scriptedProvider{
		streamFn: func(ctx context.Context, req *CompletionRequest) (Stream, error) {
			return &scriptedStream{chunks: []*CompletionChunk{
				reasoningChunk("thinking..."),
				textChunk("answer"),
			}}, nil
		},
	}
	c := newStreamTestClient(t, p)

	var col collector
	handle := c.StreamCompletion(context.Background(), &CompletionRequest{
		Model:    "mock/test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}, col.callbacks())
	waitDone(t, handle)

	got := col.snapshot()
	assert.Equal(t, []string{"reasoning:thinking...", "chunk:answer", "complete"}, got.events)
	assert.Equal(t, "answer", handle.Answer())
	assert.Equal(t, "thinking...", handle.Reasoning())
}

func TestStreamCompletionRetriesThenFails(t *testing.T) {
	p := &scriptedProvider{
		streamFn: func(ctx context.Context, req *CompletionRequest) (Stream, error) {
			return nil, NewServiceUnavailableError("overloaded", "mock", nil)
		},
	}
	c := newStreamTestClient(t, p)

	var col collector
	handle := c.StreamCompletion(context.Background(), &CompletionRequest{
		Model:    "mock/test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}, col.callbacks())
	waitDone(t, handle)

	got := col.snapshot()
	assert.Equal(t, 3, p.attemptCount(), "two retries means three attempts")
	assert.Equal(t, 2, got.retries)
	assert.Equal(t, 0, got.completes)
	assert.Equal(t, 1, got.failures)

	var serviceErr *ServiceUnavailableError
	assert.True(t, errors.As(got.terminalEr, &serviceErr))
}

func TestStreamCompletionRetriesThenSucceeds(t *testing.T) {
	attempt := 0
	p := &scriptedProvider{
		streamFn: func(ctx context.Context, req *CompletionRequest) (Stream, error) {
			attempt++
			if attempt < 3 {
				return nil, NewNetworkError("connection reset", "mock", nil)
			}
			return &scriptedStream{chunks: []*CompletionChunk{textChunk("ok")}}, nil
		},
	}
	c := newStreamTestClient(t, p)

	var col collector
	handle := c.StreamCompletion(context.Background(), &CompletionRequest{
		Model:    "mock/test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}, col.callbacks())
	waitDone(t, handle)

	got := col.snapshot()
	assert.Equal(t, 2, got.retries)
	assert.Equal(t, 1, got.completes)
	assert.Equal(t, 0, got.failures)
	assert.Equal(t, "ok", handle.Answer())
}

func TestStreamCompletionFatalErrorNotRetried(t *testing.T) {
	p := &scriptedProvider{
		streamFn: func(ctx context.Context, req *CompletionRequest) (Stream, error) {
			return nil, NewAuthenticationError("invalid key", "mock", nil)
		},
	}
	c := newStreamTestClient(t, p)

	var col collector
	handle := c.StreamCompletion(context.Background(), &CompletionRequest{
		Model:    "mock/test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}, col.callbacks())
	waitDone(t, handle)

	got := col.snapshot()
	assert.Equal(t, 1, p.attemptCount())
	assert.Equal(t, 0, got.retries)
	assert.Equal(t, 1, got.failures)

	var authErr *AuthenticationError
	assert.True(t, errors.As(got.terminalEr, &authErr))
}

func TestStreamCompletionDowngradesOnPluginRejection(t *testing.T) {
	p := &scriptedProvider{
		streamFn: func(ctx context.Context, req *CompletionRequest) (Stream, error) {
			if len(req.Plugins) > 0 {
				return nil, NewPluginUnsupportedError("web search is not supported", "mock", nil)
			}
			return &scriptedStream{chunks: []*CompletionChunk{textChunk("plain answer")}}, nil
		},
	}
	// Zero retry budget: the downgrade path must still run.
	c := newStreamTestClient(t, p, WithMaxRetries(0))

	var col collector
	handle := c.StreamCompletion(context.Background(), &CompletionRequest{
		Model:    "mock/test-model:online",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
		Plugins:  []Plugin{{ID: WebPluginID}},
	}, col.callbacks())
	waitDone(t, handle)

	got := col.snapshot()
	assert.Equal(t, 1, got.completes)
	assert.Equal(t, 0, got.failures)
	assert.Equal(t, []int{2}, got.retryAttempts, "the resubmission reports its own attempt number")
	assert.Equal(t, "plain answer", handle.Answer())

	require.Equal(t, 2, p.attemptCount())
	first := p.request(0)
	assert.Equal(t, "test-model:online", first.Model)
	assert.Len(t, first.Plugins, 1)

	second := p.request(1)
	assert.Equal(t, "test-model", second.Model)
	assert.Nil(t, second.Plugins)
}

func TestStreamCompletionDowngradesOnlyOnce(t *testing.T) {
	p := &scriptedProvider{
		streamFn: func(ctx context.Context, req *CompletionRequest) (Stream, error) {
			return nil, NewPluginUnsupportedError("plugin rejected", "mock", nil)
		},
	}
	c := newStreamTestClient(t, p, WithMaxRetries(0))

	var col collector
	handle := c.StreamCompletion(context.Background(), &CompletionRequest{
		Model:    "mock/test-model:online",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
		Plugins:  []Plugin{{ID: WebPluginID}},
	}, col.callbacks())
	waitDone(t, handle)

	got := col.snapshot()
	assert.Equal(t, 2, p.attemptCount(), "original plus one downgraded resubmission")
	assert.Equal(t, 0, got.completes)
	assert.Equal(t, 1, got.failures)
}

func TestStreamCompletionMidStreamFailureRetries(t *testing.T) {
	attempt := 0
	p := &scriptedProvider{
		streamFn: func(ctx context.Context, req *CompletionRequest) (Stream, error) {
			attempt++
			if attempt == 1 {
				return &scriptedStream{
					chunks:   []*CompletionChunk{textChunk("partial ")},
					finalErr: NewNetworkError("connection reset", "mock", nil),
				}, nil
			}
			return &scriptedStream{chunks: []*CompletionChunk{
				textChunk("full"),
				textChunk(" answer"),
			}}, nil
		},
	}
	c := newStreamTestClient(t, p)

	var col collector
	handle := c.StreamCompletion(context.Background(), &CompletionRequest{
		Model:    "mock/test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}, col.callbacks())
	waitDone(t, handle)

	got := col.snapshot()
	assert.Equal(t, 1, got.retries, "UI is told to discard the partial output")
	assert.Equal(t, 1, got.completes)
	assert.Equal(t, "full answer", handle.Answer(), "only the successful attempt is committed")
	assert.Equal(t, "partial full answer", strings.Join(got.chunks, ""), "live delivery includes the discarded attempt")
}

// blockingStream parks Recv on the request context.
type blockingStream struct {
	ctx context.Context
}

func (s *blockingStream) Recv() (*CompletionChunk, error) {
	<-s.ctx.Done()
	return nil, s.ctx.Err()
}

func (s *blockingStream) Close() error { return nil }

func TestStreamCompletionRetriesTimedOutAttempt(t *testing.T) {
	p := &scriptedProvider{}
	p.streamFn = func(ctx context.Context, req *CompletionRequest) (Stream, error) {
		if p.attemptCount() == 1 {
			return &blockingStream{ctx: ctx}, nil
		}
		return &scriptedStream{chunks: []*CompletionChunk{
			textChunk("recovered"),
		}}, nil
	}
	c := newStreamTestClient(t, p)

	var col collector
	handle := c.StreamCompletion(context.Background(), &CompletionRequest{
		Model:    "mock/test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
		Timeout:  20 * time.Millisecond,
	}, col.callbacks())
	waitDone(t, handle)

	got := col.snapshot()
	assert.Equal(t, 2, p.attemptCount(), "a timed-out attempt is transient")
	assert.Equal(t, []int{2}, got.retryAttempts)
	assert.Equal(t, 1, got.completes)
	assert.Equal(t, 0, got.failures)
	assert.Equal(t, "recovered", handle.Answer())
}

func TestStreamCompletionCancel(t *testing.T) {
	started := make(chan struct{})
	p := &scriptedProvider{
		streamFn: func(ctx context.Context, req *CompletionRequest) (Stream, error) {
			close(started)
			return &blockingStream{ctx: ctx}, nil
		},
	}
	c := newStreamTestClient(t, p)

	var col collector
	handle := c.StreamCompletion(context.Background(), &CompletionRequest{
		Model:    "mock/test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}, col.callbacks())

	<-started
	handle.Cancel()
	waitDone(t, handle)

	got := col.snapshot()
	assert.Equal(t, 0, got.completes, "no completion after cancel")
	assert.Equal(t, 0, got.failures, "cancellation is silent, not an error")
	assert.Empty(t, handle.Answer())

	// Cancel again is harmless.
	handle.Cancel()
}

func TestStreamCompletionExactlyOneTerminalCallback(t *testing.T) {
	p := &scriptedProvider{
		streamFn: func(ctx context.Context, req *CompletionRequest) (Stream, error) {
			return &scriptedStream{chunks: []*CompletionChunk{textChunk("done")}}, nil
		},
	}
	c := newStreamTestClient(t, p)

	for i := 0; i < 20; i++ {
		var col collector
		handle := c.StreamCompletion(context.Background(), &CompletionRequest{
			Model:    "mock/test-model",
			Messages: []Message{{Role: RoleUser, Content: "hello"}},
		}, col.callbacks())
		waitDone(t, handle)

		got := col.snapshot()
		assert.Equal(t, 1, got.completes+got.failures)
	}
}

func TestStreamCompletionUnknownProvider(t *testing.T) {
	c, err := NewClient(WithRetries(0, time.Millisecond))
	require.NoError(t, err)
	defer c.Close()

	var col collector
	handle := c.StreamCompletion(context.Background(), &CompletionRequest{
		Model:    "nosuch/model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}, col.callbacks())
	waitDone(t, handle)

	got := col.snapshot()
	assert.Equal(t, 1, got.failures)
	assert.Contains(t, got.terminalEr.Error(), "not found")
}
