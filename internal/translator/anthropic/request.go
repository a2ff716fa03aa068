// Package anthropic parses and renders the Anthropic messages wire dialect
// ( "A") to and from translator's canonical Request/Response
// types.
package anthropic

import (
	"encoding/json"

	"github.com/byokey/byokey/internal/translator"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ParseRequest converts an Anthropic messages request body into the
// canonical Request. The top-level `system` field is hoisted into
// Request.System, concatenated with "\n\n" when given as an array of text
// blocks.
func ParseRequest(raw []byte) (translator.Request, error) {
	root := gjson.ParseBytes(raw)
	req := translator.Request{
		Model:     root.Get("model").String(),
		Stream:    root.Get("stream").Bool(),
		MaxTokens: int(root.Get("max_tokens").Int()),
	}
	if t := root.Get("temperature"); t.Exists() {
		v := t.Float()
		req.Temperature = &v
	}
	if tp := root.Get("top_p"); tp.Exists() {
		v := tp.Float()
		req.TopP = &v
	}
	root.Get("stop_sequences").ForEach(func(_, s gjson.Result) bool {
		req.Stop = append(req.Stop, s.String())
		return true
	})
	req.ReasoningRequested = root.Get("thinking.type").String() == "enabled"

	req.System = parseSystem(root.Get("system"))

	root.Get("tools").ForEach(func(_, t gjson.Result) bool {
		tool := translator.Tool{Name: t.Get("name").String(), Description: t.Get("description").String()}
		if schema := t.Get("input_schema"); schema.Exists() {
			var m map[string]any
			if json.Unmarshal([]byte(schema.Raw), &m) == nil {
				tool.Parameters = m
			}
		}
		req.Tools = append(req.Tools, tool)
		return true
	})
	req.ToolChoice = parseToolChoice(root.Get("tool_choice"))

	root.Get("messages").ForEach(func(_, m gjson.Result) bool {
		req.Messages = append(req.Messages, parseMessage(m))
		return true
	})

	return req, nil
}

func parseSystem(sys gjson.Result) string {
	if !sys.Exists() {
		return ""
	}
	if sys.Type == gjson.String {
		return sys.String()
	}
	var parts []string
	sys.ForEach(func(_, p gjson.Result) bool {
		if text := p.Get("text").String(); text != "" {
			parts = append(parts, text)
		}
		return true
	})
	return joinNonEmpty(parts)
}

func joinNonEmpty(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n\n"
		}
		out += p
	}
	return out
}

func parseToolChoice(tc gjson.Result) translator.ToolChoice {
	if !tc.Exists() {
		return translator.ToolChoice{Mode: "auto"}
	}
	switch tc.Get("type").String() {
	case "none":
		return translator.ToolChoice{Mode: "none"}
	case "any":
		return translator.ToolChoice{Mode: "required"}
	case "tool":
		return translator.ToolChoice{Mode: "tool", Tool: tc.Get("name").String()}
	default:
		return translator.ToolChoice{Mode: "auto"}
	}
}

func parseMessage(m gjson.Result) translator.Message {
	role := m.Get("role").String()
	content := m.Get("content")

	var parts []translator.Part
	if content.Type == gjson.String {
		if content.String() != "" {
			parts = append(parts, translator.Part{Kind: translator.PartText, Text: content.String()})
		}
		return translator.Message{Role: role, Parts: parts}
	}

	content.ForEach(func(_, block gjson.Result) bool {
		parts = append(parts, parseContentBlock(block))
		return true
	})
	return translator.Message{Role: role, Parts: parts}
}

func parseContentBlock(block gjson.Result) translator.Part {
	cacheControl := block.Get("cache_control.type").String() == "ephemeral"
	switch block.Get("type").String() {
	case "tool_use":
		var input map[string]any
		if raw := block.Get("input"); raw.Exists() {
			_ = json.Unmarshal([]byte(raw.Raw), &input)
		}
		return translator.Part{
			Kind: translator.PartToolUse, ToolUseID: block.Get("id").String(),
			ToolName: block.Get("name").String(), ToolInput: input, CacheControl: cacheControl,
		}
	case "tool_result":
		return translator.Part{
			Kind: translator.PartToolResult, ToolUseID: block.Get("tool_use_id").String(),
			ToolResultContent: toolResultText(block.Get("content")),
			ToolResultIsError: block.Get("is_error").Bool(),
		}
	case "thinking":
		return translator.Part{Kind: translator.PartThinking, Text: block.Get("thinking").String()}
	case "image":
		src := block.Get("source")
		return translator.Part{
			Kind: translator.PartImage, ImageData: src.Get("data").String(), ImageMIMEType: src.Get("media_type").String(),
		}
	default: // "text"
		return translator.Part{Kind: translator.PartText, Text: block.Get("text").String(), CacheControl: cacheControl}
	}
}

func toolResultText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	var out string
	content.ForEach(func(_, p gjson.Result) bool {
		out += p.Get("text").String()
		return true
	})
	return out
}

// RenderRequest renders the canonical Request as an Anthropic messages
// request body. Every content block whose source part carried a cache-control
// marker gets `cache_control: {type:"ephemeral"}`. The system prompt is
// rendered as a plain string and carries no cache-control marker.
func RenderRequest(req translator.Request) []byte {
	out := []byte(`{}`)
	out, _ = sjson.SetBytes(out, "model", req.Model)
	out, _ = sjson.SetBytes(out, "stream", req.Stream)
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	out, _ = sjson.SetBytes(out, "max_tokens", maxTokens)
	if req.Temperature != nil {
		out, _ = sjson.SetBytes(out, "temperature", *req.Temperature)
	}
	if req.TopP != nil {
		out, _ = sjson.SetBytes(out, "top_p", *req.TopP)
	}
	if len(req.Stop) > 0 {
		out, _ = sjson.SetBytes(out, "stop_sequences", req.Stop)
	}
	if req.System != "" {
		out, _ = sjson.SetBytes(out, "system", req.System)
	}
	if len(req.Tools) > 0 {
		out, _ = sjson.SetRawBytes(out, "tools", mustMarshal(renderTools(req.Tools)))
		out, _ = sjson.SetRawBytes(out, "tool_choice", mustMarshal(renderToolChoice(req.ToolChoice)))
	}

	messages := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, renderMessage(m))
	}
	out, _ = sjson.SetRawBytes(out, "messages", mustMarshal(messages))
	return out
}

func renderMessage(m translator.Message) map[string]any {
	role := m.Role
	if role == "tool" {
		role = "user"
	}
	blocks := make([]map[string]any, 0, len(m.Parts))
	for _, p := range m.Parts {
		blocks = append(blocks, renderContentBlock(p))
	}
	return map[string]any{"role": role, "content": blocks}
}

func renderContentBlock(p translator.Part) map[string]any {
	var block map[string]any
	switch p.Kind {
	case translator.PartToolUse:
		input := p.ToolInput
		if input == nil && p.ToolRawArgs != "" {
			input = map[string]any{"_raw": p.ToolRawArgs}
		}
		block = map[string]any{"type": "tool_use", "id": p.ToolUseID, "name": p.ToolName, "input": input}
	case translator.PartToolResult:
		block = map[string]any{"type": "tool_result", "tool_use_id": p.ToolUseID, "content": p.ToolResultContent}
		if p.ToolResultIsError {
			block["is_error"] = true
		}
	case translator.PartThinking:
		block = map[string]any{"type": "thinking", "thinking": p.Text}
	case translator.PartImage:
		block = map[string]any{"type": "image", "source": map[string]string{"type": "base64", "media_type": p.ImageMIMEType, "data": p.ImageData}}
	default:
		block = map[string]any{"type": "text", "text": p.Text}
	}
	if p.CacheControl {
		block["cache_control"] = map[string]string{"type": "ephemeral"}
	}
	return block
}

func renderTools(tools []translator.Tool) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]any{"name": t.Name, "description": t.Description, "input_schema": t.Parameters})
	}
	return out
}

func renderToolChoice(tc translator.ToolChoice) map[string]any {
	switch tc.Mode {
	case "none":
		return map[string]any{"type": "none"}
	case "required":
		return map[string]any{"type": "any"}
	case "tool":
		return map[string]any{"type": "tool", "name": tc.Tool}
	default:
		return map[string]any{"type": "auto"}
	}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}
