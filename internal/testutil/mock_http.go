// Package testutil provides shared test doubles: a scriptable HTTP
// client, mock providers and streams, and SSE transcript helpers.
package testutil

import (
	"bytes"
	"io"
	"net/http"
	"strings"
)

// MockHTTPClient is a scriptable HTTP client for tests.
//
// It records every request for later verification and delegates to
// DoFunc for the response.
//
// Example:
//
//	mock := &testutil.MockHTTPClient{
//	    DoFunc: func(req *http.Request) (*http.Response, error) {
//	        return testutil.MockResponse(200, `{"result": "ok"}`), nil
//	    },
//	}
type MockHTTPClient struct {
	// DoFunc is called for each request. When nil, a 200 OK with an
	// empty JSON body is returned.
	DoFunc func(req *http.Request) (*http.Response, error)

	// RequestsMade records every request, in order.
	RequestsMade []*http.Request

	// BodiesSent records the body bytes of every request, in order.
	BodiesSent [][]byte
}

// Do records the request and invokes DoFunc.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.RequestsMade = append(m.RequestsMade, req)
	if req.Body != nil {
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))
		m.BodiesSent = append(m.BodiesSent, body)
	} else {
		m.BodiesSent = append(m.BodiesSent, nil)
	}
	if m.DoFunc != nil {
		return m.DoFunc(req)
	}
	return MockResponse(200, "{}"), nil
}

// LastBody returns the body of the most recent request, or nil.
func (m *MockHTTPClient) LastBody() []byte {
	if len(m.BodiesSent) == 0 {
		return nil
	}
	return m.BodiesSent[len(m.BodiesSent)-1]
}

// MockResponse builds an HTTP response with the given status and body.
func MockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

// MockSSEResponse builds a 200 response whose body is an SSE transcript
// of the given data payloads, terminated by the "[DONE]" sentinel.
func MockSSEResponse(payloads ...string) *http.Response {
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader(SSETranscript(payloads...))),
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
	}
}

// SSETranscript renders data payloads as an SSE wire transcript with a
// trailing "[DONE]" sentinel.
func SSETranscript(payloads ...string) string {
	var b strings.Builder
	for _, payload := range payloads {
		b.WriteString("data: ")
		b.WriteString(payload)
		b.WriteString("\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

// ChunkedReader yields the underlying data in fixed-size reads, so tests
// can exercise frames split across arbitrary network chunk boundaries.
type ChunkedReader struct {
	data      []byte
	chunkSize int
	offset    int
}

// NewChunkedReader returns a ChunkedReader over data that yields at most
// chunkSize bytes per Read.
func NewChunkedReader(data string, chunkSize int) *ChunkedReader {
	return &ChunkedReader{data: []byte(data), chunkSize: chunkSize}
}

func (r *ChunkedReader) Read(p []byte) (int, error) {
	if r.offset >= len(r.data) {
		return 0, io.EOF
	}
	end := r.offset + r.chunkSize
	if end > len(r.data) {
		end = len(r.data)
	}
	n := copy(p, r.data[r.offset:end])
	r.offset += n
	return n, nil
}

// Close implements io.ReadCloser.
func (r *ChunkedReader) Close() error { return nil }
