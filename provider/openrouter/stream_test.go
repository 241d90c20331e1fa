package openrouter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	lamp "github.com/AppleLamps/gpt-lamp"
	"github.com/AppleLamps/gpt-lamp/internal/testutil"
)

func streamProvider(t *testing.T, resp *http.Response) (*Provider, *testutil.MockHTTPClient) {
	t.Helper()
	mock := &testutil.MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			return resp, nil
		},
	}
	p, err := NewProvider(WithAPIKey("sk-or-test"), WithHTTPClient(mock))
	require.NoError(t, err)
	return p, mock
}

func recvAll(t *testing.T, stream lamp.Stream) []*lamp.CompletionChunk {
	t.Helper()
	var chunks []*lamp.CompletionChunk
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return chunks
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
}

func TestCompletionStreamSetsStreamFlag(t *testing.T) {
	p, mock := streamProvider(t, testutil.MockSSEResponse())

	stream, err := p.CompletionStream(context.Background(), testRequest())
	require.NoError(t, err)
	defer stream.Close()

	body := mock.LastBody()
	assert.True(t, gjson.GetBytes(body, "stream").Bool())
	assert.Equal(t, "text/event-stream", mock.RequestsMade[0].Header.Get("Accept"))
}

func TestCompletionStreamDeliversChunks(t *testing.T) {
	p, _ := streamProvider(t, testutil.MockSSEResponse(
		`{"id":"gen-1","choices":[{"delta":{"role":"assistant","content":"Hi"}}]}`,
		`{"id":"gen-1","choices":[{"delta":{"content":" there"}}]}`,
	))

	stream, err := p.CompletionStream(context.Background(), testRequest())
	require.NoError(t, err)
	defer stream.Close()

	chunks := recvAll(t, stream)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Hi", chunks[0].Choices[0].Delta.Content)
	assert.Equal(t, " there", chunks[1].Choices[0].Delta.Content)
	assert.Equal(t, "gen-1", chunks[0].ID)
}

func TestCompletionStreamReasoningDeltas(t *testing.T) {
	p, _ := streamProvider(t, testutil.MockSSEResponse(
		`{"choices":[{"delta":{"reasoning":"thinking"}}]}`,
		`{"choices":[{"delta":{"content":"answer"}}]}`,
	))

	stream, err := p.CompletionStream(context.Background(), testRequest())
	require.NoError(t, err)
	defer stream.Close()

	chunks := recvAll(t, stream)
	require.Len(t, chunks, 2)
	assert.Equal(t, "thinking", chunks[0].Choices[0].Delta.Reasoning)
	assert.Empty(t, chunks[0].Choices[0].Delta.Content)
	assert.Equal(t, "answer", chunks[1].Choices[0].Delta.Content)
}

func TestCompletionStreamSplitFrames(t *testing.T) {
	// Frames arriving in tiny network chunks reassemble identically.
	transcript := testutil.SSETranscript(
		`{"choices":[{"delta":{"content":"Hello"}}]}`,
		`{"choices":[{"delta":{"content":" world"}}]}`,
	)

	for _, chunkSize := range []int{1, 2, 3, 7, 64} {
		resp := &http.Response{
			StatusCode: 200,
			Body:       testutil.NewChunkedReader(transcript, chunkSize),
			Header:     make(http.Header),
		}
		p, _ := streamProvider(t, resp)

		stream, err := p.CompletionStream(context.Background(), testRequest())
		require.NoError(t, err)

		chunks := recvAll(t, stream)
		require.Len(t, chunks, 2, "chunk size %d", chunkSize)
		assert.Equal(t, "Hello", chunks[0].Choices[0].Delta.Content)
		assert.Equal(t, " world", chunks[1].Choices[0].Delta.Content)
		stream.Close()
	}
}

func TestCompletionStreamSkipsMalformedFrames(t *testing.T) {
	p, _ := streamProvider(t, testutil.MockSSEResponse(
		`{"choices":[{"delta":{"content":"before"}}]}`,
		`{not valid json`,
		`{"choices":[{"delta":{"content":"after"}}]}`,
	))

	stream, err := p.CompletionStream(context.Background(), testRequest())
	require.NoError(t, err)
	defer stream.Close()

	chunks := recvAll(t, stream)
	require.Len(t, chunks, 2, "malformed frame dropped, stream continues")
	assert.Equal(t, "before", chunks[0].Choices[0].Delta.Content)
	assert.Equal(t, "after", chunks[1].Choices[0].Delta.Content)
}

func TestCompletionStreamImplicitEOF(t *testing.T) {
	// Clean connection close without [DONE] still completes the stream.
	transcript := "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n"
	resp := &http.Response{
		StatusCode: 200,
		Body:       testutil.NewChunkedReader(transcript, 1024),
		Header:     make(http.Header),
	}
	p, _ := streamProvider(t, resp)

	stream, err := p.CompletionStream(context.Background(), testRequest())
	require.NoError(t, err)
	defer stream.Close()

	chunks := recvAll(t, stream)
	require.Len(t, chunks, 1)
	assert.Equal(t, "partial", chunks[0].Choices[0].Delta.Content)
}

func TestCompletionStreamErrorFrame(t *testing.T) {
	p, _ := streamProvider(t, testutil.MockSSEResponse(
		`{"error":{"code":429,"message":"rate limited mid-stream"}}`,
	))

	stream, err := p.CompletionStream(context.Background(), testRequest())
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	var rateErr *lamp.RateLimitError
	require.True(t, errors.As(err, &rateErr), "wrong type: %T", err)
}

func TestCompletionStreamHTTPError(t *testing.T) {
	p, _ := streamProvider(t, testutil.MockResponse(401, `{"error":{"message":"bad key"}}`))

	_, err := p.CompletionStream(context.Background(), testRequest())
	var authErr *lamp.AuthenticationError
	require.True(t, errors.As(err, &authErr))
}

func TestCompletionStreamContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, _ := streamProvider(t, testutil.MockSSEResponse(
		`{"choices":[{"delta":{"content":"one"}}]}`,
		`{"choices":[{"delta":{"content":"two"}}]}`,
	))

	stream, err := p.CompletionStream(ctx, testRequest())
	require.NoError(t, err)
	defer stream.Close()

	cancel()
	_, err = stream.Recv()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompletionStreamCloseIdempotent(t *testing.T) {
	p, _ := streamProvider(t, testutil.MockSSEResponse())

	stream, err := p.CompletionStream(context.Background(), testRequest())
	require.NoError(t, err)

	assert.NoError(t, stream.Close())
	assert.NoError(t, stream.Close())

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}
