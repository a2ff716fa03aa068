// Package openai parses and renders the OpenAI chat-completions wire dialect
// ( "O") to and from translator's canonical Request/Response
// types. Payloads are walked with gjson and built with sjson, the idiom the
// rest of this codebase's translation layer uses for raw-JSON manipulation
// instead of marshaling into dialect-specific structs.
package openai

import (
	"encoding/json"

	"github.com/byokey/byokey/internal/translator"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ParseRequest converts an OpenAI chat-completions request body into the
// canonical Request.
func ParseRequest(raw []byte) (translator.Request, error) {
	root := gjson.ParseBytes(raw)
	req := translator.Request{
		Model:  root.Get("model").String(),
		Stream: root.Get("stream").Bool(),
	}
	if mt := root.Get("max_tokens"); mt.Exists() {
		req.MaxTokens = int(mt.Int())
	}
	if t := root.Get("temperature"); t.Exists() {
		v := t.Float()
		req.Temperature = &v
	}
	if tp := root.Get("top_p"); tp.Exists() {
		v := tp.Float()
		req.TopP = &v
	}
	if stop := root.Get("stop"); stop.Exists() {
		if stop.IsArray() {
			for _, s := range stop.Array() {
				req.Stop = append(req.Stop, s.String())
			}
		} else {
			req.Stop = []string{stop.String()}
		}
	}
	req.ReasoningRequested = root.Get("reasoning").Exists() || root.Get("reasoning_effort").Exists()

	root.Get("tools").ForEach(func(_, t gjson.Result) bool {
		fn := t.Get("function")
		tool := translator.Tool{
			Name:        fn.Get("name").String(),
			Description: fn.Get("description").String(),
		}
		if params := fn.Get("parameters"); params.Exists() {
			var m map[string]any
			if json.Unmarshal([]byte(params.Raw), &m) == nil {
				tool.Parameters = m
			}
		}
		req.Tools = append(req.Tools, tool)
		return true
	})

	req.ToolChoice = parseToolChoice(root.Get("tool_choice"))

	root.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		// System messages are hoisted into Request.System, joined with "\n\n".
		if msg.Get("role").String() == "system" {
			if text := contentToText(msg.Get("content")); text != "" {
				if req.System != "" {
					req.System += "\n\n"
				}
				req.System += text
			}
			return true
		}
		req.Messages = append(req.Messages, parseMessage(msg))
		return true
	})

	return req, nil
}

func parseToolChoice(tc gjson.Result) translator.ToolChoice {
	if !tc.Exists() {
		return translator.ToolChoice{Mode: "auto"}
	}
	if tc.Type == gjson.String {
		switch tc.String() {
		case "none":
			return translator.ToolChoice{Mode: "none"}
		case "required":
			return translator.ToolChoice{Mode: "required"}
		default:
			return translator.ToolChoice{Mode: "auto"}
		}
	}
	return translator.ToolChoice{Mode: "tool", Tool: tc.Get("function.name").String()}
}

// parseMessage converts one OpenAI message (system/user/assistant/tool) into
// a canonical Message. A "tool" role message becomes a single
// PartToolResult part's tool-result mapping table.
func parseMessage(msg gjson.Result) translator.Message {
	role := msg.Get("role").String()
	content := msg.Get("content")

	if role == "tool" {
		return translator.Message{
			Role: "tool",
			Parts: []translator.Part{{
				Kind:              translator.PartToolResult,
				ToolUseID:         msg.Get("tool_call_id").String(),
				ToolResultContent: contentToText(content),
			}},
		}
	}

	var parts []translator.Part
	switch content.Type {
	case gjson.String:
		if content.String() != "" {
			parts = append(parts, translator.Part{Kind: translator.PartText, Text: content.String()})
		}
	default:
		if content.IsArray() {
			content.ForEach(func(_, p gjson.Result) bool {
				parts = append(parts, parseContentPart(p))
				return true
			})
		}
	}

	if reasoning := msg.Get("reasoning"); reasoning.Exists() && reasoning.String() != "" {
		parts = append([]translator.Part{{Kind: translator.PartThinking, Text: reasoning.String()}}, parts...)
	}

	msg.Get("tool_calls").ForEach(func(_, tc gjson.Result) bool {
		fn := tc.Get("function")
		part := translator.Part{
			Kind:      translator.PartToolUse,
			ToolUseID: tc.Get("id").String(),
			ToolName:  fn.Get("name").String(),
		}
		argsRaw := fn.Get("arguments").String()
		var input map[string]any
		if err := json.Unmarshal([]byte(argsRaw), &input); err == nil {
			part.ToolInput = input
		} else {
			part.ToolRawArgs = argsRaw
		}
		parts = append(parts, part)
		return true
	})

	return translator.Message{Role: role, Parts: parts}
}

func parseContentPart(p gjson.Result) translator.Part {
	switch p.Get("type").String() {
	case "image_url":
		return translator.Part{Kind: translator.PartImage, ImageURL: p.Get("image_url.url").String()}
	default: // "text" or untagged
		return translator.Part{Kind: translator.PartText, Text: p.Get("text").String()}
	}
}

func contentToText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	if content.IsArray() {
		var text string
		content.ForEach(func(_, p gjson.Result) bool {
			if p.Get("type").String() == "text" || !p.Get("text").Exists() {
				text += p.Get("text").String()
			}
			return true
		})
		return text
	}
	return content.Raw
}

// RenderRequest renders the canonical Request as an OpenAI chat-completions
// request body.
func RenderRequest(req translator.Request) []byte {
	out := []byte(`{}`)
	out, _ = sjson.SetBytes(out, "model", req.Model)
	out, _ = sjson.SetBytes(out, "stream", req.Stream)
	if req.MaxTokens > 0 {
		out, _ = sjson.SetBytes(out, "max_tokens", req.MaxTokens)
	}
	if req.Temperature != nil {
		out, _ = sjson.SetBytes(out, "temperature", *req.Temperature)
	}
	if req.TopP != nil {
		out, _ = sjson.SetBytes(out, "top_p", *req.TopP)
	}
	if len(req.Stop) > 0 {
		out, _ = sjson.SetBytes(out, "stop", req.Stop)
	}

	messages := renderMessages(req)
	out, _ = sjson.SetRawBytes(out, "messages", mustMarshal(messages))

	if len(req.Tools) > 0 {
		out, _ = sjson.SetRawBytes(out, "tools", mustMarshal(renderTools(req.Tools)))
		out, _ = sjson.SetRawBytes(out, "tool_choice", mustMarshal(renderToolChoice(req.ToolChoice)))
	}
	return out
}

func renderMessages(req translator.Request) []map[string]any {
	var out []map[string]any
	if req.System != "" {
		out = append(out, map[string]any{"role": "system", "content": req.System})
	}
	for _, m := range req.Messages {
		out = append(out, renderMessage(m)...)
	}
	return out
}

// renderMessage can expand into more than one OpenAI message: a canonical
// message mixing a tool_result part with other content splits, since OpenAI
// represents tool results as their own `role:"tool"` message.
func renderMessage(m translator.Message) []map[string]any {
	var out []map[string]any
	var contentParts []map[string]any
	var toolCalls []map[string]any
	var reasoning string

	for _, p := range m.Parts {
		switch p.Kind {
		case translator.PartText:
			contentParts = append(contentParts, map[string]any{"type": "text", "text": p.Text})
		case translator.PartThinking:
			reasoning += p.Text
		case translator.PartToolUse:
			args := p.ToolRawArgs
			if args == "" {
				args = string(mustMarshal(p.ToolInput))
			}
			toolCalls = append(toolCalls, map[string]any{
				"id":   p.ToolUseID,
				"type": "function",
				"function": map[string]any{
					"name":      p.ToolName,
					"arguments": args,
				},
			})
		case translator.PartToolResult:
			out = append(out, map[string]any{
				"role":         "tool",
				"tool_call_id": p.ToolUseID,
				"content":      p.ToolResultContent,
			})
		case translator.PartImage:
			contentParts = append(contentParts, map[string]any{"type": "image_url", "image_url": map[string]string{"url": p.ImageURL}})
		}
	}

	if len(contentParts) > 0 || len(toolCalls) > 0 {
		msg := map[string]any{"role": m.Role}
		if len(contentParts) == 1 && contentParts[0]["type"] == "text" {
			msg["content"] = contentParts[0]["text"]
		} else if len(contentParts) > 0 {
			msg["content"] = contentParts
		} else {
			msg["content"] = nil
		}
		if len(toolCalls) > 0 {
			msg["tool_calls"] = toolCalls
		}
		if reasoning != "" {
			msg["reasoning"] = reasoning
		}
		out = append([]map[string]any{msg}, out...)
	}
	return out
}

func renderTools(tools []translator.Tool) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return out
}

func renderToolChoice(tc translator.ToolChoice) any {
	switch tc.Mode {
	case "none":
		return "none"
	case "required":
		return "required"
	case "tool":
		return map[string]any{"type": "function", "function": map[string]string{"name": tc.Tool}}
	default:
		return "auto"
	}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}
