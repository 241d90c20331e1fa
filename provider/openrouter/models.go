package openrouter

import (
	"sort"
	"strings"
)

// DefaultVisionModel is the model substituted for conversations that
// include image parts when the caller has not picked one.
const DefaultVisionModel = "openai/gpt-4o"

// ModelInfo describes an OpenRouter model's capabilities.
type ModelInfo struct {
	Name          string
	ContextWindow int
	Vision        bool
	Reasoning     bool
}

// modelRegistry lists commonly routed models and what they support.
// OpenRouter fronts many more; absence here only means no metadata.
var modelRegistry = map[string]*ModelInfo{
	"openai/gpt-4o": {
		Name:          "openai/gpt-4o",
		ContextWindow: 128000,
		Vision:        true,
	},
	"openai/gpt-4o-mini": {
		Name:          "openai/gpt-4o-mini",
		ContextWindow: 128000,
		Vision:        true,
	},
	"openai/o3-mini": {
		Name:          "openai/o3-mini",
		ContextWindow: 200000,
		Reasoning:     true,
	},
	"anthropic/claude-sonnet-4": {
		Name:          "anthropic/claude-sonnet-4",
		ContextWindow: 200000,
		Vision:        true,
		Reasoning:     true,
	},
	"google/gemini-2.0-flash-001": {
		Name:          "google/gemini-2.0-flash-001",
		ContextWindow: 1000000,
		Vision:        true,
	},
	"x-ai/grok-3-beta": {
		Name:          "x-ai/grok-3-beta",
		ContextWindow: 131072,
	},
	"deepseek/deepseek-r1": {
		Name:          "deepseek/deepseek-r1",
		ContextWindow: 64000,
		Reasoning:     true,
	},
	"meta-llama/llama-3.3-70b-instruct": {
		Name:          "meta-llama/llama-3.3-70b-instruct",
		ContextWindow: 131072,
	},
}

// GetModelInfo returns metadata for a model, or nil when unknown.
// The ":online" suffix is ignored for lookup.
func GetModelInfo(model string) *ModelInfo {
	return modelRegistry[strings.TrimSuffix(model, ":online")]
}

// IsVisionModel reports whether the model accepts image content parts.
// Unknown models report false.
func IsVisionModel(model string) bool {
	info := GetModelInfo(model)
	return info != nil && info.Vision
}

// IsReasoningModel reports whether the model emits a reasoning trace.
// Unknown models report false.
func IsReasoningModel(model string) bool {
	info := GetModelInfo(model)
	return info != nil && info.Reasoning
}

// ListModels returns the known model names, sorted.
func ListModels() []string {
	names := make([]string, 0, len(modelRegistry))
	for name := range modelRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
