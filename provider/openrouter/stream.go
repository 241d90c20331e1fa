package openrouter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/tidwall/gjson"

	lamp "github.com/AppleLamps/gpt-lamp"
	"github.com/AppleLamps/gpt-lamp/internal/sse"
)

// CompletionStream sends a streaming chat completion request to OpenRouter.
//
// The returned stream yields one chunk per SSE data frame; Recv returns
// io.EOF after the "[DONE]" sentinel, or when the connection ends cleanly
// without one. Malformed frames are skipped.
//
// The stream must be closed by the caller.
func (p *Provider) CompletionStream(ctx context.Context, req *lamp.CompletionRequest) (lamp.Stream, error) {
	body, err := p.buildBody(req, true)
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
		return nil, lamp.ParseProviderError("openrouter", httpResp.StatusCode, respBody, nil)
	}

	return &sseStream{
		ctx:     ctx,
		body:    httpResp.Body,
		decoder: sse.NewDecoder(),
		logger:  p.logger,
	}, nil
}

// sseStream reads chat-completion chunks off an SSE response body.
//
// Network chunk boundaries carry no meaning: the decoder buffers partial
// lines, so a frame split across reads is reassembled before parsing.
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
		if s.closed {
			return nil, io.EOF
		}
		if s.decoder.Done() {
			return nil, io.EOF
		}
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}

		n, err := s.body.Read(s.readBuf[:])
		if n > 0 {
			for _, payload := range s.decoder.Feed(s.readBuf[:n]) {
				chunk, chunkErr := s.parseChunk(payload)
				if chunkErr != nil {
					return nil, chunkErr
				}
				if chunk != nil {
					s.pending = append(s.pending, chunk)
				}
			}
			continue
		}
		if err == io.EOF {
			// A clean close without "[DONE]" still completes the stream.
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

// parseChunk decodes one SSE data payload into a completion chunk.
// Malformed payloads are logged and skipped; an in-band error frame is
// surfaced as a classified provider error.
func (s *sseStream) parseChunk(payload []byte) (*lamp.CompletionChunk, error) {
	if !gjson.ValidBytes(payload) {
		s.logger.Debug("skipping malformed stream frame",
			"provider", "openrouter",
			"frame", string(payload))
		return nil, nil
	}

	if errField := gjson.GetBytes(payload, "error"); errField.Exists() {
		status := int(gjson.GetBytes(payload, "error.code").Int())
		return nil, lamp.ParseProviderError("openrouter", status, payload, nil)
	}

	var chunk lamp.CompletionChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		s.logger.Debug("skipping undecodable stream frame",
			"provider", "openrouter",
			"err", err)
		return nil, nil
	}
	return &chunk, nil
}

// Close releases the underlying connection. Safe to call multiple times.
func (s *sseStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
