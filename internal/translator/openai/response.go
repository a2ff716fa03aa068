package openai

import (
	"github.com/byokey/byokey/internal/translator"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ParseResponse converts a non-streaming OpenAI chat-completions response
// into the canonical Response.
func ParseResponse(raw []byte) (translator.Response, error) {
	root := gjson.ParseBytes(raw)
	choice := root.Get("choices.0")
	msg := choice.Get("message")

	resp := translator.Response{
		Model:        root.Get("model").String(),
		FinishReason: translator.FinishReasonFromOpenAI(choice.Get("finish_reason").String()),
		Usage: translator.Usage{
			PromptTokens:     int(root.Get("usage.prompt_tokens").Int()),
			CompletionTokens: int(root.Get("usage.completion_tokens").Int()),
		},
	}
	resp.Message = parseMessage(msg)
	resp.Message.Role = "assistant"
	return resp, nil
}

// RenderResponse renders the canonical Response as an OpenAI
// chat-completions response body.
func RenderResponse(resp translator.Response) []byte {
	out := []byte(`{"object":"chat.completion"}`)
	out, _ = sjson.SetBytes(out, "model", resp.Model)

	msgs := renderMessage(resp.Message)
	var message map[string]any
	if len(msgs) > 0 {
		message = msgs[0]
	} else {
		message = map[string]any{"role": "assistant", "content": ""}
	}

	choice := map[string]any{
		"index":         0,
		"message":       message,
		"finish_reason": resp.FinishReason.OpenAI(),
	}
	out, _ = sjson.SetRawBytes(out, "choices", mustMarshal([]map[string]any{choice}))
	out, _ = sjson.SetRawBytes(out, "usage", mustMarshal(map[string]any{
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"total_tokens":      resp.Usage.PromptTokens + resp.Usage.CompletionTokens,
	}))
	return out
}
