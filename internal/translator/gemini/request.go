// Package gemini parses and renders the Google Gemini generateContent wire
// dialect ( "G") to and from translator's canonical
// Request/Response types.
package gemini

import (
	"encoding/json"

	"github.com/byokey/byokey/internal/translator"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ParseRequest converts a Gemini generateContent request body into the
// canonical Request.
func ParseRequest(raw []byte) (translator.Request, error) {
	root := gjson.ParseBytes(raw)
	req := translator.Request{Model: root.Get("model").String()}

	gc := root.Get("generationConfig")
	if mt := gc.Get("maxOutputTokens"); mt.Exists() {
		req.MaxTokens = int(mt.Int())
	}
	if t := gc.Get("temperature"); t.Exists() {
		v := t.Float()
		req.Temperature = &v
	}
	if tp := gc.Get("topP"); tp.Exists() {
		v := tp.Float()
		req.TopP = &v
	}
	gc.Get("stopSequences").ForEach(func(_, s gjson.Result) bool {
		req.Stop = append(req.Stop, s.String())
		return true
	})

	if si := root.Get("systemInstruction"); si.Exists() {
		var parts []string
		si.Get("parts").ForEach(func(_, p gjson.Result) bool {
			if text := p.Get("text").String(); text != "" {
				parts = append(parts, text)
			}
			return true
		})
		req.System = joinNonEmpty(parts)
	}

	root.Get("tools").ForEach(func(_, t gjson.Result) bool {
		t.Get("functionDeclarations").ForEach(func(_, fn gjson.Result) bool {
			tool := translator.Tool{Name: fn.Get("name").String(), Description: fn.Get("description").String()}
			if params := fn.Get("parameters"); params.Exists() {
				var m map[string]any
				if json.Unmarshal([]byte(params.Raw), &m) == nil {
					tool.Parameters = m
				}
			}
			req.Tools = append(req.Tools, tool)
			return true
		})
		return true
	})
	req.ToolChoice = parseToolChoice(root.Get("toolConfig.functionCallingConfig"))

	root.Get("contents").ForEach(func(_, c gjson.Result) bool {
		req.Messages = append(req.Messages, parseContent(c))
		return true
	})

	return req, nil
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

func parseToolChoice(fcc gjson.Result) translator.ToolChoice {
	switch fcc.Get("mode").String() {
	case "NONE":
		return translator.ToolChoice{Mode: "none"}
	case "ANY":
		names := fcc.Get("allowedFunctionNames").Array()
		if len(names) == 1 {
			return translator.ToolChoice{Mode: "tool", Tool: names[0].String()}
		}
		return translator.ToolChoice{Mode: "required"}
	default:
		return translator.ToolChoice{Mode: "auto"}
	}
}

// parseContent maps Gemini's "model" role onto the canonical "assistant".
func parseContent(c gjson.Result) translator.Message {
	role := c.Get("role").String()
	if role == "model" {
		role = "assistant"
	}
	var parts []translator.Part
	c.Get("parts").ForEach(func(_, p gjson.Result) bool {
		parts = append(parts, parsePart(p))
		return true
	})
	return translator.Message{Role: role, Parts: parts}
}

func parsePart(p gjson.Result) translator.Part {
	if fc := p.Get("functionCall"); fc.Exists() {
		var args map[string]any
		if raw := fc.Get("args"); raw.Exists() {
			_ = json.Unmarshal([]byte(raw.Raw), &args)
		}
		return translator.Part{Kind: translator.PartToolUse, ToolName: fc.Get("name").String(), ToolInput: args}
	}
	if fr := p.Get("functionResponse"); fr.Exists() {
		return translator.Part{Kind: translator.PartToolResult, ToolName: fr.Get("name").String(), ToolResultContent: fr.Get("response").Raw}
	}
	if inline := p.Get("inlineData"); inline.Exists() {
		return translator.Part{Kind: translator.PartImage, ImageMIMEType: inline.Get("mimeType").String(), ImageData: inline.Get("data").String()}
	}
	return translator.Part{Kind: translator.PartText, Text: p.Get("text").String()}
}

// RenderRequest renders the canonical Request as a Gemini generateContent
// request body.
func RenderRequest(req translator.Request) []byte {
	out := []byte(`{}`)
	gc := map[string]any{}
	if req.MaxTokens > 0 {
		gc["maxOutputTokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		gc["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		gc["topP"] = *req.TopP
	}
	if len(req.Stop) > 0 {
		gc["stopSequences"] = req.Stop
	}
	if len(gc) > 0 {
		out, _ = sjson.SetRawBytes(out, "generationConfig", mustMarshal(gc))
	}

	if req.System != "" {
		out, _ = sjson.SetRawBytes(out, "systemInstruction", mustMarshal(map[string]any{"parts": []map[string]string{{"text": req.System}}}))
	}

	if len(req.Tools) > 0 {
		decls := make([]map[string]any, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, map[string]any{"name": t.Name, "description": t.Description, "parameters": t.Parameters})
		}
		out, _ = sjson.SetRawBytes(out, "tools", mustMarshal([]map[string]any{{"functionDeclarations": decls}}))
		out, _ = sjson.SetRawBytes(out, "toolConfig", mustMarshal(map[string]any{"functionCallingConfig": renderToolChoice(req.ToolChoice)}))
	}

	contents := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			continue // hoisted into systemInstruction already
		}
		contents = append(contents, renderContent(m))
	}
	out, _ = sjson.SetRawBytes(out, "contents", mustMarshal(contents))
	return out
}

func renderToolChoice(tc translator.ToolChoice) map[string]any {
	switch tc.Mode {
	case "none":
		return map[string]any{"mode": "NONE"}
	case "required":
		return map[string]any{"mode": "ANY"}
	case "tool":
		return map[string]any{"mode": "ANY", "allowedFunctionNames": []string{tc.Tool}}
	default:
		return map[string]any{"mode": "AUTO"}
	}
}

func renderContent(m translator.Message) map[string]any {
	role := m.Role
	if role == "assistant" {
		role = "model"
	}
	if role == "tool" {
		role = "user"
	}
	parts := make([]map[string]any, 0, len(m.Parts))
	for _, p := range m.Parts {
		parts = append(parts, renderPart(p))
	}
	return map[string]any{"role": role, "parts": parts}
}

func renderPart(p translator.Part) map[string]any {
	switch p.Kind {
	case translator.PartToolUse:
		input := p.ToolInput
		if input == nil && p.ToolRawArgs != "" {
			input = map[string]any{"_raw": p.ToolRawArgs}
		}
		return map[string]any{"functionCall": map[string]any{"name": p.ToolName, "args": input}}
	case translator.PartToolResult:
		var response any
		if err := json.Unmarshal([]byte(p.ToolResultContent), &response); err != nil {
			response = map[string]string{"result": p.ToolResultContent}
		}
		return map[string]any{"functionResponse": map[string]any{"name": p.ToolName, "response": response}}
	case translator.PartImage:
		return map[string]any{"inlineData": map[string]string{"mimeType": p.ImageMIMEType, "data": p.ImageData}}
	default:
		// PartThinking never reaches here: TranslateRequest strips thinking
		// blocks before rendering to Gemini, whose wire format has no
		// reasoning representation.
		return map[string]any{"text": p.Text}
	}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}
