package testutil

import (
	"context"
	"fmt"
	"sync"

	lamp "github.com/AppleLamps/gpt-lamp"
)

// MockProvider is a scriptable provider adapter for tests.
//
// Each method delegates to the corresponding func field; requests are
// recorded for verification. Attempt-dependent behavior (fail twice,
// then succeed) is expressed by closing over a counter in the func.
type MockProvider struct {
	// NameValue is returned by Name. Defaults to "mock".
	NameValue string

	CompletionFunc func(ctx context.Context, req *lamp.CompletionRequest) (*lamp.CompletionResponse, error)
	StreamFunc     func(ctx context.Context, req *lamp.CompletionRequest) (lamp.Stream, error)
	ImageFunc      func(ctx context.Context, req *lamp.ImageGenerationRequest) (*lamp.ImageGenerationResponse, error)

	mu       sync.Mutex
	requests []*lamp.CompletionRequest
}

var _ lamp.Provider = (*MockProvider)(nil)

func (m *MockProvider) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockProvider) Completion(ctx context.Context, req *lamp.CompletionRequest) (*lamp.CompletionResponse, error) {
	m.record(req)
	if m.CompletionFunc != nil {
		return m.CompletionFunc(ctx, req)
	}
	return &lamp.CompletionResponse{
		Choices: []lamp.Choice{
			{Message: lamp.Message{Role: lamp.RoleAssistant, Content: "mock response"}},
		},
	}, nil
}

func (m *MockProvider) CompletionStream(ctx context.Context, req *lamp.CompletionRequest) (lamp.Stream, error) {
	m.record(req)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	return NewMockStream(TextChunk("mock response")), nil
}

func (m *MockProvider) ImageGeneration(ctx context.Context, req *lamp.ImageGenerationRequest) (*lamp.ImageGenerationResponse, error) {
	if m.ImageFunc != nil {
		return m.ImageFunc(ctx, req)
	}
	return nil, fmt.Errorf("mock provider does not support image generation")
}

func (m *MockProvider) Supports() interface{} {
	return nil
}

func (m *MockProvider) record(req *lamp.CompletionRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqCopy := *req
	m.requests = append(m.requests, &reqCopy)
}

// Requests returns copies of every completion request received, in order.
func (m *MockProvider) Requests() []*lamp.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*lamp.CompletionRequest(nil), m.requests...)
}

// RequestCount returns the number of completion attempts received.
func (m *MockProvider) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
