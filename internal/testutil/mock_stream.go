package testutil

import (
	"io"

	lamp "github.com/AppleLamps/gpt-lamp"
)

// MockStream yields pre-configured chunks in order.
//
// After the chunks are exhausted, Recv returns FinalErr when set,
// otherwise io.EOF.
//
// Example:
//
//	stream := testutil.NewMockStream(
//	    testutil.TextChunk("Hello"),
//	    testutil.TextChunk(" world"),
//	)
type MockStream struct {
	// FinalErr, when non-nil, replaces io.EOF after the last chunk.
	// Use it to simulate a stream that dies mid-flight.
	FinalErr error

	chunks []*lamp.CompletionChunk
	index  int
	closed bool
}

var _ lamp.Stream = (*MockStream)(nil)

// NewMockStream creates a stream over the given chunks.
func NewMockStream(chunks ...*lamp.CompletionChunk) *MockStream {
	return &MockStream{chunks: chunks}
}

// Recv returns the next chunk, then FinalErr or io.EOF.
func (m *MockStream) Recv() (*lamp.CompletionChunk, error) {
	if m.closed {
		return nil, io.EOF
	}
	if m.index >= len(m.chunks) {
		if m.FinalErr != nil {
			return nil, m.FinalErr
		}
		return nil, io.EOF
	}
	chunk := m.chunks[m.index]
	m.index++
	return chunk, nil
}

// Close marks the stream closed. Safe to call multiple times.
func (m *MockStream) Close() error {
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockStream) Closed() bool {
	return m.closed
}

// TextChunk builds a chunk carrying one answer fragment.
func TextChunk(text string) *lamp.CompletionChunk {
	return &lamp.CompletionChunk{
		Choices: []lamp.ChunkChoice{
			{Delta: lamp.MessageDelta{Content: text}},
		},
	}
}

// ReasoningChunk builds a chunk carrying one reasoning fragment.
func ReasoningChunk(text string) *lamp.CompletionChunk {
	return &lamp.CompletionChunk{
		Choices: []lamp.ChunkChoice{
			{Delta: lamp.MessageDelta{Reasoning: text}},
		},
	}
}
