package lamp

import (
	"fmt"
	"strings"
)

// OnlineSuffix is appended to a model id to request web-search capability
// from OpenRouter-compatible backends.
const OnlineSuffix = ":online"

// WebPluginID identifies the web-search plugin.
const WebPluginID = "web"

// DefaultTemperature is applied when the caller does not set one.
const DefaultTemperature = 0.7

// BuildOptions configures the transformation of a conversation into a
// wire request.
type BuildOptions struct {
	// Model is the provider model id to request.
	Model string

	// VisionModel is the model id substituted when the conversation
	// contains image parts. Empty disables vision substitution.
	VisionModel string

	// SystemPrompt is injected as the leading system message when the
	// conversation does not already contain one. Empty injects nothing.
	SystemPrompt string

	// ContextText is large free-text context (e.g. attached file
	// contents). When non-empty it is added as an additional system
	// message after the leading one; the caller's own system message
	// is never mutated.
	ContextText string

	// WebSearch requests the web-search plugin and the online model
	// suffix. Ignored when vision substitution applies: when a
	// conversation holds images and search at once, vision wins.
	WebSearch bool

	// SearchMaxResults caps web-search results. Zero lets the backend choose.
	SearchMaxResults int

	// SearchPrompt customizes how search results are presented to the model.
	SearchPrompt string

	// Temperature in [0,1]. Nil applies DefaultTemperature.
	Temperature *float64

	// MaxTokens caps generation. Nil leaves the provider ceiling in effect.
	MaxTokens *int

	// CacheThreshold is the content length above which a long-context
	// cache marker is attached. Zero applies DefaultCacheThreshold.
	CacheThreshold int
}

// BuildRequest assembles a provider wire request from a conversation and
// options.
//
// BuildRequest is a pure function of its inputs: the conversation is
// never mutated; transformed messages are copies. The result is
// JSON-serializable and carries no caller-internal metadata.
//
// Guarantees:
//   - Exactly one leading system message is injected when the caller
//     provided none and SystemPrompt is set; a caller-provided system
//     message is used verbatim.
//   - ContextText, when set, becomes one additional system message.
//   - Per message, at most one text part carries the cache marker, and
//     it is the last part exceeding the threshold.
//   - The plugins field is present only when web search is active.
func BuildRequest(messages []Message, opts BuildOptions) (*CompletionRequest, error) {
	return buildRequest(messages, opts)
}

// BuildRequest assembles a wire request like the package-level
// BuildRequest, substituting the client's configured cache threshold
// when the options leave it unset.
func (c *client) BuildRequest(messages []Message, opts BuildOptions) (*CompletionRequest, error) {
	if opts.CacheThreshold <= 0 {
		opts.CacheThreshold = c.config.CacheThreshold
	}
	return buildRequest(messages, opts)
}

func buildRequest(messages []Message, opts BuildOptions) (*CompletionRequest, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("conversation cannot be empty")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if opts.Temperature != nil && (*opts.Temperature < 0 || *opts.Temperature > 1) {
		return nil, fmt.Errorf("temperature must be in [0,1], got %v", *opts.Temperature)
	}

	threshold := opts.CacheThreshold
	if threshold <= 0 {
		threshold = DefaultCacheThreshold
	}

	out := make([]Message, 0, len(messages)+2)

	if !hasSystemMessage(messages) && opts.SystemPrompt != "" {
		out = append(out, Message{Role: RoleSystem, Content: opts.SystemPrompt})
	}
	out = append(out, messages...)

	if opts.ContextText != "" {
		out = insertAfterSystem(out, Message{Role: RoleSystem, Content: opts.ContextText})
	}

	for i := range out {
		out[i] = markLongContent(out[i], threshold)
	}

	req := &CompletionRequest{
		Messages:    out,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if req.Temperature == nil {
		req.Temperature = Float64Ptr(DefaultTemperature)
	}

	// Capability selection. Vision and web search are mutually exclusive
	// per call; vision takes precedence when both apply.
	switch {
	case opts.VisionModel != "" && hasImageParts(out):
		req.Model = opts.VisionModel
	case opts.WebSearch:
		req.Model = EnsureOnlineSuffix(opts.Model)
		req.Plugins = []Plugin{{
			ID:           WebPluginID,
			MaxResults:   opts.SearchMaxResults,
			SearchPrompt: opts.SearchPrompt,
		}}
	default:
		req.Model = opts.Model
	}

	return req, nil
}

// DowngradeRequest returns a copy of req with the web-search capability
// removed: the plugins list is dropped and the model id's online suffix
// stripped. Used after a backend rejects the plugin as unsupported.
func DowngradeRequest(req *CompletionRequest) *CompletionRequest {
	out := *req
	out.Plugins = nil
	out.Model = StripOnlineSuffix(req.Model)
	return &out
}

// EnsureOnlineSuffix appends the online capability tag to a model id.
// Idempotent: a model already carrying the suffix is returned unchanged.
func EnsureOnlineSuffix(model string) string {
	if strings.HasSuffix(model, OnlineSuffix) {
		return model
	}
	return model + OnlineSuffix
}

// StripOnlineSuffix removes the online capability tag from a model id,
// if present.
func StripOnlineSuffix(model string) string {
	return strings.TrimSuffix(model, OnlineSuffix)
}

// hasSystemMessage reports whether the conversation contains a
// system-role message.
func hasSystemMessage(messages []Message) bool {
	for _, m := range messages {
		if m.Role == RoleSystem {
			return true
		}
	}
	return false
}

// hasImageParts reports whether any message carries image content.
func hasImageParts(messages []Message) bool {
	for _, m := range messages {
		parts, ok := m.Content.([]ContentPart)
		if !ok {
			continue
		}
		for _, p := range parts {
			if p.Type == PartImage {
				return true
			}
		}
	}
	return false
}

// insertAfterSystem inserts msg after the leading run of system
// messages, so injected context precedes the conversation proper.
func insertAfterSystem(messages []Message, msg Message) []Message {
	i := 0
	for i < len(messages) && messages[i].Role == RoleSystem {
		i++
	}
	out := make([]Message, 0, len(messages)+1)
	out = append(out, messages[:i]...)
	out = append(out, msg)
	out = append(out, messages[i:]...)
	return out
}

// markLongContent attaches the long-context cache marker to a message
// whose content exceeds the threshold. String content is rewritten into
// a one-part array carrying the marker. For array content, the last text
// part exceeding the threshold (scanning from the end) receives the
// marker; at most one part per message is marked. The input message is
// never mutated; a transformed copy is returned.
func markLongContent(msg Message, threshold int) Message {
	switch content := msg.Content.(type) {
	case string:
		if len(content) <= threshold {
			return msg
		}
		msg.Content = []ContentPart{{
			Type:         PartText,
			Text:         content,
			CacheControl: EphemeralCache(),
		}}
		return msg

	case []ContentPart:
		for i := len(content) - 1; i >= 0; i-- {
			if content[i].Type != PartText || len(content[i].Text) <= threshold {
				continue
			}
			parts := make([]ContentPart, len(content))
			copy(parts, content)
			parts[i].CacheControl = EphemeralCache()
			msg.Content = parts
			return msg
		}
		return msg

	default:
		return msg
	}
}
