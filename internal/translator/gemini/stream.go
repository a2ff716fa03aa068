package gemini

import (
	"bytes"
	"strings"

	"github.com/byokey/byokey/internal/translator"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// decoder implements translator.StreamDecoder for Gemini's `data: {...}`
// chunked generateContent stream. Gemini's functionCall parts
// arrive whole (not incrementally), so a tool call decodes as a
// start/args/stop triple within the same Feed call.
type decoder struct {
	startEmitted bool
}

// NewStreamDecoder returns a fresh per-stream translator.StreamDecoder.
func NewStreamDecoder() translator.StreamDecoder {
	return &decoder{}
}

func (d *decoder) Feed(frame []byte) ([]translator.StreamDelta, error) {
	line := bytes.TrimSpace(bytes.TrimPrefix(bytes.TrimSpace(frame), []byte("data:")))
	if len(line) == 0 {
		return nil, nil
	}
	root := gjson.ParseBytes(line)
	candidate := root.Get("candidates.0")

	var out []translator.StreamDelta
	if !d.startEmitted {
		d.startEmitted = true
		out = append(out, translator.StreamDelta{Kind: translator.DeltaStart, Role: "assistant"})
	}

	candidate.Get("content.parts").ForEach(func(_, part gjson.Result) bool {
		if fc := part.Get("functionCall"); fc.Exists() {
			toolID := fc.Get("name").String()
			out = append(out, translator.StreamDelta{Kind: translator.DeltaToolStart, ToolID: toolID, ToolName: fc.Get("name").String()})
			args := fc.Get("args").Raw
			if args == "" {
				args = "{}"
			}
			out = append(out, translator.StreamDelta{Kind: translator.DeltaToolArgs, ToolID: toolID, ArgsFragment: args})
			out = append(out, translator.StreamDelta{Kind: translator.DeltaToolStop, ToolID: toolID})
			return true
		}
		if text := part.Get("text").String(); text != "" {
			if part.Get("thought").Bool() {
				out = append(out, translator.StreamDelta{Kind: translator.DeltaThinking, Text: text})
			} else {
				out = append(out, translator.StreamDelta{Kind: translator.DeltaText, Text: text})
			}
		}
		return true
	})

	if fr := candidate.Get("finishReason"); fr.Exists() && fr.String() != "" {
		out = append(out, translator.StreamDelta{Kind: translator.DeltaStop, FinishReason: translator.FinishReasonFromGemini(fr.String())})
		out = append(out, translator.StreamDelta{Kind: translator.DeltaDone})
	}
	return out, nil
}

// encoder implements translator.StreamEncoder. Gemini's functionCall part
// is atomic, so tool-call arguments accumulate across DeltaToolArgs calls
// and are flushed as a single chunk on DeltaToolStop.
type encoder struct {
	toolName map[string]string
	toolArgs map[string]*strings.Builder
}

// NewStreamEncoder returns a fresh per-stream translator.StreamEncoder.
func NewStreamEncoder() translator.StreamEncoder {
	return &encoder{toolName: make(map[string]string), toolArgs: make(map[string]*strings.Builder)}
}

func (e *encoder) Encode(delta translator.StreamDelta) []byte {
	switch delta.Kind {
	case translator.DeltaStart, translator.DeltaDone, translator.DeltaPing:
		return nil

	case translator.DeltaText:
		return e.chunk(map[string]any{"text": delta.Text}, "")

	case translator.DeltaThinking:
		return e.chunk(map[string]any{"text": delta.Text, "thought": true}, "")

	case translator.DeltaToolStart:
		e.toolName[delta.ToolID] = delta.ToolName
		e.toolArgs[delta.ToolID] = &strings.Builder{}
		return nil

	case translator.DeltaToolArgs:
		if b, ok := e.toolArgs[delta.ToolID]; ok {
			b.WriteString(delta.ArgsFragment)
		}
		return nil

	case translator.DeltaToolStop:
		name := e.toolName[delta.ToolID]
		raw := "{}"
		if b, ok := e.toolArgs[delta.ToolID]; ok && b.Len() > 0 {
			raw = b.String()
		}
		delete(e.toolName, delta.ToolID)
		delete(e.toolArgs, delta.ToolID)
		return e.chunkRaw([]byte(`{"functionCall":{"name":"` + jsonEscape(name) + `","args":` + raw + `}}`))

	case translator.DeltaStop:
		out := []byte(`{}`)
		out, _ = sjson.SetRawBytes(out, "candidates", mustMarshal([]map[string]any{{"finishReason": delta.FinishReason.Gemini(), "index": 0}}))
		return append([]byte("data: "), append(out, '\n', '\n')...)

	case translator.DeltaError:
		// Mirrors Google's own mid-stream error shape: a top-level `error`
		// object alongside a candidate carrying finishReason "OTHER", so a
		// client reading only candidates still sees the stream terminate
		// instead of hanging on an incomplete turn.
		out := []byte(`{}`)
		out, _ = sjson.SetRawBytes(out, "candidates", mustMarshal([]map[string]any{{"finishReason": "OTHER", "index": 0}}))
		out, _ = sjson.SetRawBytes(out, "error", mustMarshal(map[string]any{"code": 500, "message": delta.ErrorMessage, "status": "INTERNAL"}))
		return append([]byte("data: "), append(out, '\n', '\n')...)

	default:
		return nil
	}
}

func (e *encoder) chunk(part map[string]any, finishReason string) []byte {
	candidate := map[string]any{"content": map[string]any{"role": "model", "parts": []map[string]any{part}}, "index": 0}
	if finishReason != "" {
		candidate["finishReason"] = finishReason
	}
	out := []byte(`{}`)
	out, _ = sjson.SetRawBytes(out, "candidates", mustMarshal([]map[string]any{candidate}))
	return append([]byte("data: "), append(out, '\n', '\n')...)
}

func (e *encoder) chunkRaw(partJSON []byte) []byte {
	out := []byte(`{"candidates":[{"content":{"role":"model","parts":[]},"index":0}]}`)
	out, _ = sjson.SetRawBytes(out, "candidates.0.content.parts.-1", partJSON)
	return append([]byte("data: "), append(out, '\n', '\n')...)
}

func jsonEscape(s string) string {
	b := mustMarshal(s)
	return string(b[1 : len(b)-1])
}
