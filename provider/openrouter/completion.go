package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/sjson"

	lamp "github.com/AppleLamps/gpt-lamp"
)

// Completion sends a buffered chat completion request to OpenRouter.
//
// The full response is returned once the backend finishes generating.
// Non-2xx responses are classified through lamp.ParseProviderError;
// transport failures come back as lamp.NetworkError or lamp.TimeoutError.
func (p *Provider) Completion(ctx context.Context, req *lamp.CompletionRequest) (*lamp.CompletionResponse, error) {
	body, err := p.buildBody(req, false)
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
		return nil, lamp.ParseProviderError("openrouter", httpResp.StatusCode, respBody, nil)
	}

	var resp lamp.CompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, lamp.NewMalformedResponseError("failed to decode response", "openrouter", err)
	}

	return &resp, nil
}

// buildBody marshals the wire request body. Extra body fields configured
// on the adapter are merged in last, so they can override anything.
func (p *Provider) buildBody(req *lamp.CompletionRequest, stream bool) ([]byte, error) {
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
	if req.Plugins != nil {
		wireReq["plugins"] = req.Plugins
	}
	if stream {
		wireReq["stream"] = true
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	for path, value := range p.extraBody {
		body, err = sjson.SetBytes(body, path, value)
		if err != nil {
			return nil, fmt.Errorf("failed to set extra body field %q: %w", path, err)
		}
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
// hierarchy so the retry logic can tell transient failures apart.
// Context cancellation and deadline errors pass through untouched; the
// caller distinguishes its own timeout from user cancellation.
func classifyTransportErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return lamp.NewTimeoutError("request timed out", "openrouter", err)
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return lamp.NewTimeoutError("request timed out", "openrouter", err)
	}
	return lamp.NewNetworkError("request failed", "openrouter", err)
}
