package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	lamp "github.com/AppleLamps/gpt-lamp"
)

// Completion sends a buffered chat completion request to OpenAI.
func (p *Provider) Completion(ctx context.Context, req *lamp.CompletionRequest) (*lamp.CompletionResponse, error) {
	body, err := buildBody(req, false)
	if err != nil {
		return nil, err
	}

	httpReq, err := p.newRequest(ctx, "/chat/completions", body, req.APIKey, req.APIBase)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportErr(ctx, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, lamp.ParseProviderError("openai", httpResp.StatusCode, respBody, nil)
	}

	var resp lamp.CompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, lamp.NewMalformedResponseError("failed to decode response", "openai", err)
	}

	return &resp, nil
}

// buildBody marshals the wire request. OpenAI has no plugin mechanism,
// so plugins are rejected here rather than silently dropped; the caller
// decides whether to downgrade.
func buildBody(req *lamp.CompletionRequest, stream bool) ([]byte, error) {
	if len(req.Plugins) > 0 {
		return nil, lamp.NewPluginUnsupportedError(
			"openai does not support plugins", "openai", nil)
	}

	wireReq := map[string]any{
		"model":    req.Model,
		"messages": req.Messages,
	}
	if req.Temperature != nil {
		wireReq["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		wireReq["max_tokens"] = *req.MaxTokens
	}
	if stream {
		wireReq["stream"] = true
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, nil
}

// newJSONRequest creates a POST request with a JSON body.
func newJSONRequest(ctx context.Context, url string, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

// classifyTransportErr maps HTTP transport failures onto the typed error
// hierarchy. Context errors pass through untouched.
func classifyTransportErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &timeoutErr) && timeoutErr.Timeout()) {
		return lamp.NewTimeoutError("request timed out", "openai", err)
	}
	return lamp.NewNetworkError("request failed", "openai", err)
}
