package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	lamp "github.com/AppleLamps/gpt-lamp"
)

// ImageGeneration generates images with DALL-E.
//
// Example:
//
//	resp, err := p.ImageGeneration(ctx, &lamp.ImageGenerationRequest{
//	    Model:  "dall-e-3",
//	    Prompt: "a watercolor fox",
//	    Size:   "1024x1024",
//	})
func (p *Provider) ImageGeneration(ctx context.Context, req *lamp.ImageGenerationRequest) (*lamp.ImageGenerationResponse, error) {
	wireReq := map[string]any{
		"model":  req.Model,
		"prompt": req.Prompt,
	}
	if req.N != nil {
		wireReq["n"] = *req.N
	}
	if req.Size != "" {
		wireReq["size"] = req.Size
	}
	if req.Quality != "" {
		wireReq["quality"] = req.Quality
	}
	if req.ResponseFormat != "" {
		wireReq["response_format"] = req.ResponseFormat
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := p.newRequest(ctx, "/images/generations", body, "", "")
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

	var resp lamp.ImageGenerationResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, lamp.NewMalformedResponseError("failed to decode response", "openai", err)
	}

	return &resp, nil
}
