// Package translator implements the bidirectional request/response/stream
// translation between the three wire dialects : OpenAI
// chat-completions (O), Anthropic messages (A), and Google Gemini
// generateContent (G). Each dialect package parses its wire JSON into the
// canonical types defined here and renders the canonical types back to its
// own wire JSON, so the six pairwise directions reduce to three parsers and
// three renderers instead of a combinatorial pile of direct converters.
package translator

import "strings"

// Dialect tags one of the three wire protocols BYOKEY understands.
type Dialect int

const (
	OpenAI Dialect = iota
	Anthropic
	Gemini
)

func (d Dialect) String() string {
	switch d {
	case OpenAI:
		return "openai"
	case Anthropic:
		return "anthropic"
	case Gemini:
		return "gemini"
	default:
		return "unknown"
	}
}

// CarriesReasoning reports whether d's wire format has a representation for
// a thinking/reasoning content block. Gemini's generateContent payload has
// none, so a thinking block routed to Gemini must be stripped rather than
// rendered as something else.
func (d Dialect) CarriesReasoning() bool {
	return d != Gemini
}

// PartKind tags the variant of a message Part ( content blocks).
type PartKind int

const (
	PartText PartKind = iota
	PartToolUse
	PartToolResult
	PartThinking
	PartImage
)

// Part is one block of a message's content, in the tagged-variant shape
// every dialect's content array (A, G) or content-string-or-array (O) maps
// onto.
type Part struct {
	Kind PartKind

	Text string // PartText, PartThinking

	ToolUseID string // PartToolUse, PartToolResult
	ToolName  string // PartToolUse
	ToolInput map[string]any // PartToolUse, parsed object
	ToolRawArgs string // PartToolUse, the raw JSON-string form when ToolInput failed to parse ( tool-call mapping fallback)

	ToolResultContent string // PartToolResult
	ToolResultIsError bool   // PartToolResult

	ImageURL      string // PartImage
	ImageMIMEType string
	ImageData     string // base64, when the source embedded the bytes directly

	// CacheControl marks this part with Anthropic's `cache_control:
	// {type:"ephemeral"}` prompt-caching marker.
	CacheControl bool
}

// Message is one canonical chat turn. Role is one of "system", "user",
// "assistant", or "tool" (the O vocabulary; A/G map onto it on parse and
// off it on render).
type Message struct {
	Role  string
	Parts []Part
}

// TextContent concatenates every text-bearing part of the message (plain
// text, thinking, and tool-result strings), for callers that only need a
// rough text estimate rather than the structured content.
func (m Message) TextContent() string {
	var b strings.Builder
	for _, p := range m.Parts {
		switch p.Kind {
		case PartText, PartThinking:
			b.WriteString(p.Text)
		case PartToolResult:
			b.WriteString(p.ToolResultContent)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Tool is a callable function definition, independent of dialect.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema object
}

// ToolChoice selects how the model may use tools.
type ToolChoice struct {
	Mode string // "auto", "none", "required"/"any", or "tool" for a forced single tool
	Tool string // populated when Mode == "tool"
}

// Request is the canonical chat-completion request.
type Request struct {
	Model       string
	Messages    []Message
	System      string // hoisted system text (A's top-level `system`, G's `systemInstruction`)
	Tools       []Tool
	ToolChoice  ToolChoice
	Stream      bool
	MaxTokens   int
	Temperature *float64
	TopP        *float64
	Stop        []string
	// ReasoningRequested mirrors O's reasoning-model `reasoning` field or A's
	// thinking budget being configured; used to decide whether thinking
	// blocks should be preserved on translation.
	ReasoningRequested bool
}

// FinishReason is the canonical completion-stop vocabulary; each dialect
// renderer maps it to its own string.
type FinishReason int

const (
	FinishUnspecified FinishReason = iota
	FinishStop
	FinishLength
	FinishToolCalls
	FinishContentFilter
	FinishError
)

// Usage is token accounting, when the upstream reports it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response is the canonical non-streaming chat-completion response.
type Response struct {
	Model        string
	Message      Message
	FinishReason FinishReason
	Usage        Usage
}

// MergeAdjacentSameRole concatenates consecutive same-role messages (spec
// §4.3: "Anthropic and Gemini both reject alternating-role violations").
// Text parts are joined with "\n\n"; non-text parts are appended in order.
func MergeAdjacentSameRole(messages []Message) []Message {
	if len(messages) == 0 {
		return messages
	}
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if len(out) > 0 && out[len(out)-1].Role == m.Role {
			out[len(out)-1].Parts = mergeParts(out[len(out)-1].Parts, m.Parts)
			continue
		}
		out = append(out, m)
	}
	return out
}

func mergeParts(a, b []Part) []Part {
	if len(a) > 0 && len(b) > 0 && lastIsText(a) && firstIsText(b) {
		merged := make([]Part, 0, len(a)+len(b)-1)
		merged = append(merged, a[:len(a)-1]...)
		joined := a[len(a)-1]
		joined.Text = joined.Text + "\n\n" + b[0].Text
		merged = append(merged, joined)
		merged = append(merged, b[1:]...)
		return merged
	}
	out := make([]Part, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func lastIsText(parts []Part) bool {
	return len(parts) > 0 && parts[len(parts)-1].Kind == PartText
}

func firstIsText(parts []Part) bool {
	return len(parts) > 0 && parts[0].Kind == PartText
}

// StripThinking removes PartThinking blocks from every message, used when a
// forced tool_choice or the target dialect can't carry reasoning.
func StripThinking(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		kept := make([]Part, 0, len(m.Parts))
		for _, p := range m.Parts {
			if p.Kind != PartThinking {
				kept = append(kept, p)
			}
		}
		out[i] = Message{Role: m.Role, Parts: kept}
	}
	return out
}
