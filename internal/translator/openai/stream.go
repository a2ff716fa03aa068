package openai

import (
	"bytes"

	"github.com/byokey/byokey/internal/translator"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// decoder implements translator.StreamDecoder for OpenAI's `data: {...}`
// chunk stream terminated by `data: [DONE]`.
type decoder struct {
	startEmitted bool
	toolIDByIdx  map[int]string
}

// NewStreamDecoder returns a fresh per-stream translator.StreamDecoder.
func NewStreamDecoder() translator.StreamDecoder {
	return &decoder{toolIDByIdx: make(map[int]string)}
}

func (d *decoder) Feed(frame []byte) ([]translator.StreamDelta, error) {
	line := bytes.TrimSpace(bytes.TrimPrefix(bytes.TrimSpace(frame), []byte("data:")))
	if len(line) == 0 {
		return nil, nil
	}
	if string(line) == "[DONE]" {
		return []translator.StreamDelta{{Kind: translator.DeltaDone}}, nil
	}

	root := gjson.ParseBytes(line)
	choice := root.Get("choices.0")
	delta := choice.Get("delta")

	var out []translator.StreamDelta
	if !d.startEmitted && delta.Get("role").Exists() {
		d.startEmitted = true
		out = append(out, translator.StreamDelta{Kind: translator.DeltaStart, Role: "assistant"})
	}
	if content := delta.Get("content"); content.Exists() && content.String() != "" {
		out = append(out, translator.StreamDelta{Kind: translator.DeltaText, Text: content.String()})
	}
	if reasoning := delta.Get("reasoning"); reasoning.Exists() && reasoning.String() != "" {
		out = append(out, translator.StreamDelta{Kind: translator.DeltaThinking, Text: reasoning.String()})
	}
	delta.Get("tool_calls").ForEach(func(_, tc gjson.Result) bool {
		idx := int(tc.Get("index").Int())
		if id := tc.Get("id").String(); id != "" {
			d.toolIDByIdx[idx] = id
			out = append(out, translator.StreamDelta{Kind: translator.DeltaToolStart, ToolID: id, ToolName: tc.Get("function.name").String()})
		}
		if args := tc.Get("function.arguments").String(); args != "" {
			out = append(out, translator.StreamDelta{Kind: translator.DeltaToolArgs, ToolID: d.toolIDByIdx[idx], ArgsFragment: args})
		}
		return true
	})
	if fr := choice.Get("finish_reason"); fr.Exists() && fr.String() != "" {
		out = append(out, translator.StreamDelta{Kind: translator.DeltaStop, FinishReason: translator.FinishReasonFromOpenAI(fr.String())})
	}
	return out, nil
}

// encoder implements translator.StreamEncoder, rendering canonical deltas
// as OpenAI chat.completion.chunk frames.
type encoder struct {
	toolIndexByID map[string]int
	nextToolIndex int
}

// NewStreamEncoder returns a fresh per-stream translator.StreamEncoder.
func NewStreamEncoder() translator.StreamEncoder {
	return &encoder{toolIndexByID: make(map[string]int)}
}

func (e *encoder) Encode(delta translator.StreamDelta) []byte {
	switch delta.Kind {
	case translator.DeltaStart:
		return e.chunk(map[string]any{"role": "assistant"}, "")
	case translator.DeltaText:
		return e.chunk(map[string]any{"content": delta.Text}, "")
	case translator.DeltaThinking:
		return e.chunk(map[string]any{"reasoning": delta.Text}, "")
	case translator.DeltaToolStart:
		idx, ok := e.toolIndexByID[delta.ToolID]
		if !ok {
			idx = e.nextToolIndex
			e.nextToolIndex++
			e.toolIndexByID[delta.ToolID] = idx
		}
		tc := map[string]any{"index": idx, "id": delta.ToolID, "type": "function", "function": map[string]any{"name": delta.ToolName, "arguments": ""}}
		return e.chunk(map[string]any{"tool_calls": []map[string]any{tc}}, "")
	case translator.DeltaToolArgs:
		idx := e.toolIndexByID[delta.ToolID]
		tc := map[string]any{"index": idx, "function": map[string]any{"arguments": delta.ArgsFragment}}
		return e.chunk(map[string]any{"tool_calls": []map[string]any{tc}}, "")
	case translator.DeltaStop:
		return e.chunk(map[string]any{}, delta.FinishReason.OpenAI())
	case translator.DeltaError:
		return e.errorChunk(delta.ErrorMessage)
	case translator.DeltaDone:
		return []byte("data: [DONE]\n\n")
	default:
		return []byte("data: {}\n\n")
	}
}

// errorChunk renders a final chunk carrying a top-level `error` field, per
// OpenAI's mid-stream error convention: the chunk still has the usual
// choices/delta/finish_reason shape so clients that only look at
// finish_reason still see the stream end, but the error message itself
// rides in `error`, not silently dropped.
func (e *encoder) errorChunk(message string) []byte {
	out := e.chunkJSON(map[string]any{}, "error")
	out, _ = sjson.SetRawBytes(out, "error", mustMarshal(map[string]any{"message": message, "type": "upstream_error"}))
	return sseFrame(out)
}

func (e *encoder) chunk(delta map[string]any, finishReason string) []byte {
	return sseFrame(e.chunkJSON(delta, finishReason))
}

func (e *encoder) chunkJSON(delta map[string]any, finishReason string) []byte {
	out := []byte(`{"object":"chat.completion.chunk"}`)
	choice := map[string]any{"index": 0, "delta": delta}
	if finishReason != "" {
		choice["finish_reason"] = finishReason
	} else {
		choice["finish_reason"] = nil
	}
	out, _ = sjson.SetRawBytes(out, "choices", mustMarshal([]map[string]any{choice}))
	return out
}

func sseFrame(jsonBody []byte) []byte {
	return append([]byte("data: "), append(jsonBody, '\n', '\n')...)
}
