package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	lamp "github.com/AppleLamps/gpt-lamp"
	"github.com/AppleLamps/gpt-lamp/internal/sse"
)

// CompletionStream sends a streaming chat completion request to OpenAI.
//
// The returned stream must be closed by the caller.
func (p *Provider) CompletionStream(ctx context.Context, req *lamp.CompletionRequest) (lamp.Stream, error) {
	body, err := buildBody(req, true)
	if err != nil {
		return nil, err
	}

	httpReq, err := p.newRequest(ctx, "/chat/completions", body, req.APIKey, req.APIBase)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportErr(ctx, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		return nil, lamp.ParseProviderError("openai", httpResp.StatusCode, respBody, nil)
	}

	return &sseStream{
		ctx:     ctx,
		body:    httpResp.Body,
		decoder: sse.NewDecoder(),
		logger:  p.logger,
	}, nil
}

// sseStream reads chat-completion chunks off an SSE response body.
type sseStream struct {
	ctx     context.Context
	body    io.ReadCloser
	decoder *sse.Decoder
	logger  *slog.Logger

	pending []*lamp.CompletionChunk
	readBuf [4096]byte
	closed  bool
}

// Recv returns the next chunk, or io.EOF when the stream is complete.
func (s *sseStream) Recv() (*lamp.CompletionChunk, error) {
	for {
		if len(s.pending) > 0 {
			chunk := s.pending[0]
			s.pending = s.pending[1:]
			return chunk, nil
		}
		if s.closed || s.decoder.Done() {
			return nil, io.EOF
		}
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}

		n, err := s.body.Read(s.readBuf[:])
		if n > 0 {
			for _, payload := range s.decoder.Feed(s.readBuf[:n]) {
				var chunk lamp.CompletionChunk
				if jsonErr := json.Unmarshal(payload, &chunk); jsonErr != nil {
					s.logger.Debug("skipping malformed stream frame",
						"provider", "openai",
						"err", jsonErr)
					continue
				}
				s.pending = append(s.pending, &chunk)
			}
			continue
		}
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			if s.ctx.Err() != nil {
				return nil, s.ctx.Err()
			}
			return nil, classifyTransportErr(s.ctx, err)
		}
	}
}

// Close releases the underlying connection. Safe to call multiple times.
func (s *sseStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
