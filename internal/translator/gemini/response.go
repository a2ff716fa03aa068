package gemini

import (
	"github.com/byokey/byokey/internal/translator"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ParseResponse converts a non-streaming Gemini generateContent response
// into the canonical Response.
func ParseResponse(raw []byte) (translator.Response, error) {
	root := gjson.ParseBytes(raw)
	candidate := root.Get("candidates.0")
	resp := translator.Response{
		FinishReason: translator.FinishReasonFromGemini(candidate.Get("finishReason").String()),
		Usage: translator.Usage{
			PromptTokens:     int(root.Get("usageMetadata.promptTokenCount").Int()),
			CompletionTokens: int(root.Get("usageMetadata.candidatesTokenCount").Int()),
		},
	}
	resp.Message = parseContent(candidate.Get("content"))
	resp.Message.Role = "assistant"
	return resp, nil
}

// RenderResponse renders the canonical Response as a Gemini generateContent
// response body.
func RenderResponse(resp translator.Response) []byte {
	out := []byte(`{}`)
	content := renderContent(resp.Message)
	candidate := map[string]any{
		"content":      content,
		"finishReason": resp.FinishReason.Gemini(),
		"index":        0,
	}
	out, _ = sjson.SetRawBytes(out, "candidates", mustMarshal([]map[string]any{candidate}))
	out, _ = sjson.SetRawBytes(out, "usageMetadata", mustMarshal(map[string]any{
		"promptTokenCount":     resp.Usage.PromptTokens,
		"candidatesTokenCount": resp.Usage.CompletionTokens,
		"totalTokenCount":      resp.Usage.PromptTokens + resp.Usage.CompletionTokens,
	}))
	return out
}
