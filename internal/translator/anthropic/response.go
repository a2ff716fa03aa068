package anthropic

import (
	"github.com/byokey/byokey/internal/translator"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ParseResponse converts a non-streaming Anthropic messages response into
// the canonical Response.
func ParseResponse(raw []byte) (translator.Response, error) {
	root := gjson.ParseBytes(raw)
	resp := translator.Response{
		Model:        root.Get("model").String(),
		FinishReason: translator.FinishReasonFromAnthropic(root.Get("stop_reason").String()),
		Usage: translator.Usage{
			PromptTokens:     int(root.Get("usage.input_tokens").Int()),
			CompletionTokens: int(root.Get("usage.output_tokens").Int()),
		},
	}
	var parts []translator.Part
	root.Get("content").ForEach(func(_, block gjson.Result) bool {
		parts = append(parts, parseContentBlock(block))
		return true
	})
	resp.Message = translator.Message{Role: "assistant", Parts: parts}
	return resp, nil
}

// RenderResponse renders the canonical Response as an Anthropic messages
// response body.
func RenderResponse(resp translator.Response) []byte {
	out := []byte(`{"type":"message","role":"assistant"}`)
	out, _ = sjson.SetBytes(out, "model", resp.Model)
	out, _ = sjson.SetBytes(out, "stop_reason", resp.FinishReason.Anthropic())

	blocks := make([]map[string]any, 0, len(resp.Message.Parts))
	for _, p := range resp.Message.Parts {
		blocks = append(blocks, renderContentBlock(p))
	}
	out, _ = sjson.SetRawBytes(out, "content", mustMarshal(blocks))
	out, _ = sjson.SetRawBytes(out, "usage", mustMarshal(map[string]any{
		"input_tokens":  resp.Usage.PromptTokens,
		"output_tokens": resp.Usage.CompletionTokens,
	}))
	return out
}
