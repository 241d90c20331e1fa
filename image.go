package lamp

import (
	"context"
	"fmt"
)

// ImageGeneration generates images from a text prompt.
//
// The request is routed to a provider by the model name prefix. Providers
// without image support return an error.
//
// Example:
//
//	resp, err := client.ImageGeneration(ctx, &lamp.ImageGenerationRequest{
//	    Model:  "openai/dall-e-3",
//	    Prompt: "a lamp glowing in a dark room",
//	    Size:   "1024x1024",
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(resp.Data[0].URL)
func (c *client) ImageGeneration(ctx context.Context, req *ImageGenerationRequest) (*ImageGenerationResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	if req.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	if RequestIDFromContext(ctx) == "" {
		ctx = WithGeneratedRequestID(ctx)
	}

	providerName, modelName, err := parseModel(req.Model)
	if err != nil {
		return nil, err
	}
	ctx = WithProvider(ctx, providerName)
	ctx = WithModel(ctx, modelName)

	p, err := c.getProvider(providerName)
	if err != nil {
		return nil, fmt.Errorf("provider %q not found (did you register it?)", providerName)
	}

	providerReq := *req
	providerReq.Model = modelName

	var resp *ImageGenerationResponse
	err = c.withRetry(ctx, c.config.MaxRetries, func() error {
		attemptCtx, cancel := c.applyTimeout(ctx, req.Timeout)
		defer cancel()
		var attemptErr error
		resp, attemptErr = p.ImageGeneration(attemptCtx, &providerReq)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}

	resp.Provider = providerName
	resp.Model = modelName
	return resp, nil
}
