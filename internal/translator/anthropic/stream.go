package anthropic

import (
	"bytes"

	"github.com/byokey/byokey/internal/translator"
	"github.com/tidwall/gjson"
)

// decoder implements translator.StreamDecoder for Anthropic's named SSE
// events: message_start, content_block_start, content_block_delta,
// content_block_stop, message_delta, message_stop, ping.
type decoder struct {
	blockKind       map[int]string // index -> "text" | "tool_use" | "thinking"
	toolIDByIndex   map[int]string
	pendingStopRsn  string
}

// NewStreamDecoder returns a fresh per-stream translator.StreamDecoder.
func NewStreamDecoder() translator.StreamDecoder {
	return &decoder{blockKind: make(map[int]string), toolIDByIndex: make(map[int]string)}
}

func (d *decoder) Feed(frame []byte) ([]translator.StreamDelta, error) {
	event, data := splitSSEFrame(frame)
	if len(data) == 0 {
		return nil, nil
	}
	root := gjson.ParseBytes(data)

	switch event {
	case "message_start":
		return []translator.StreamDelta{{Kind: translator.DeltaStart, Role: "assistant"}}, nil

	case "content_block_start":
		idx := int(root.Get("index").Int())
		block := root.Get("content_block")
		kind := block.Get("type").String()
		d.blockKind[idx] = kind
		if kind == "tool_use" {
			id := block.Get("id").String()
			d.toolIDByIndex[idx] = id
			return []translator.StreamDelta{{Kind: translator.DeltaToolStart, ToolID: id, ToolName: block.Get("name").String()}}, nil
		}
		return nil, nil

	case "content_block_delta":
		idx := int(root.Get("index").Int())
		delta := root.Get("delta")
		switch delta.Get("type").String() {
		case "text_delta":
			return []translator.StreamDelta{{Kind: translator.DeltaText, Text: delta.Get("text").String()}}, nil
		case "input_json_delta":
			return []translator.StreamDelta{{Kind: translator.DeltaToolArgs, ToolID: d.toolIDByIndex[idx], ArgsFragment: delta.Get("partial_json").String()}}, nil
		case "thinking_delta":
			return []translator.StreamDelta{{Kind: translator.DeltaThinking, Text: delta.Get("thinking").String()}}, nil
		}
		return nil, nil

	case "content_block_stop":
		idx := int(root.Get("index").Int())
		if d.blockKind[idx] == "tool_use" {
			return []translator.StreamDelta{{Kind: translator.DeltaToolStop, ToolID: d.toolIDByIndex[idx]}}, nil
		}
		return nil, nil

	case "message_delta":
		if sr := root.Get("delta.stop_reason"); sr.Exists() {
			d.pendingStopRsn = sr.String()
		}
		return nil, nil

	case "message_stop":
		return []translator.StreamDelta{
			{Kind: translator.DeltaStop, FinishReason: translator.FinishReasonFromAnthropic(d.pendingStopRsn)},
			{Kind: translator.DeltaDone},
		}, nil

	case "ping":
		return []translator.StreamDelta{{Kind: translator.DeltaPing}}, nil

	case "error":
		return []translator.StreamDelta{{Kind: translator.DeltaError, ErrorMessage: root.Get("error.message").String()}}, nil

	default:
		return nil, nil
	}
}

func splitSSEFrame(frame []byte) (event string, data []byte) {
	for _, line := range bytes.Split(frame, []byte("\n")) {
		line = bytes.TrimSpace(line)
		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			event = string(bytes.TrimSpace(bytes.TrimPrefix(line, []byte("event:"))))
		case bytes.HasPrefix(line, []byte("data:")):
			data = bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
		}
	}
	return event, data
}

// encoder implements translator.StreamEncoder, rendering canonical deltas
// as Anthropic's named SSE events. Text/thinking/tool_use content blocks
// are opened lazily on first content and closed before the next block
// starts or the message ends, matching Anthropic's block-oriented framing.
type encoder struct {
	nextIndex     int
	openKind      string // "" | "text" | "thinking" | "tool_use"
	openIndex     int
	toolIndexByID map[string]int
}

// NewStreamEncoder returns a fresh per-stream translator.StreamEncoder.
func NewStreamEncoder() translator.StreamEncoder {
	return &encoder{toolIndexByID: make(map[string]int)}
}

func (e *encoder) Encode(delta translator.StreamDelta) []byte {
	var out bytes.Buffer
	switch delta.Kind {
	case translator.DeltaStart:
		out.Write(event("message_start", map[string]any{"message": map[string]any{"role": "assistant", "content": []any{}}}))

	case translator.DeltaText:
		if e.openKind != "text" {
			out.Write(e.closeOpenBlock())
			e.openKind, e.openIndex = "text", e.nextIndex
			e.nextIndex++
			out.Write(event("content_block_start", map[string]any{"index": e.openIndex, "content_block": map[string]any{"type": "text", "text": ""}}))
		}
		out.Write(event("content_block_delta", map[string]any{"index": e.openIndex, "delta": map[string]any{"type": "text_delta", "text": delta.Text}}))

	case translator.DeltaThinking:
		if e.openKind != "thinking" {
			out.Write(e.closeOpenBlock())
			e.openKind, e.openIndex = "thinking", e.nextIndex
			e.nextIndex++
			out.Write(event("content_block_start", map[string]any{"index": e.openIndex, "content_block": map[string]any{"type": "thinking", "thinking": ""}}))
		}
		out.Write(event("content_block_delta", map[string]any{"index": e.openIndex, "delta": map[string]any{"type": "thinking_delta", "thinking": delta.Text}}))

	case translator.DeltaToolStart:
		out.Write(e.closeOpenBlock())
		idx := e.nextIndex
		e.nextIndex++
		e.openKind, e.openIndex = "tool_use", idx
		e.toolIndexByID[delta.ToolID] = idx
		out.Write(event("content_block_start", map[string]any{"index": idx, "content_block": map[string]any{"type": "tool_use", "id": delta.ToolID, "name": delta.ToolName, "input": map[string]any{}}}))

	case translator.DeltaToolArgs:
		idx := e.toolIndexByID[delta.ToolID]
		out.Write(event("content_block_delta", map[string]any{"index": idx, "delta": map[string]any{"type": "input_json_delta", "partial_json": delta.ArgsFragment}}))

	case translator.DeltaToolStop:
		idx := e.toolIndexByID[delta.ToolID]
		out.Write(event("content_block_stop", map[string]any{"index": idx}))
		if e.openIndex == idx {
			e.openKind = ""
		}

	case translator.DeltaStop:
		out.Write(e.closeOpenBlock())
		out.Write(event("message_delta", map[string]any{"delta": map[string]any{"stop_reason": delta.FinishReason.Anthropic()}}))
		out.Write(event("message_stop", map[string]any{}))

	case translator.DeltaError:
		out.Write(e.closeOpenBlock())
		messageDelta := map[string]any{"delta": map[string]any{"stop_reason": "error"}}
		if delta.ErrorMessage != "" {
			messageDelta["error"] = map[string]any{"type": "api_error", "message": delta.ErrorMessage}
		}
		out.Write(event("message_delta", messageDelta))
		out.Write(event("message_stop", map[string]any{}))

	case translator.DeltaPing:
		out.Write(event("ping", map[string]any{"type": "ping"}))

	case translator.DeltaDone:
		// Anthropic has no terminal sentinel beyond message_stop.
	}
	return out.Bytes()
}

func (e *encoder) closeOpenBlock() []byte {
	if e.openKind == "" {
		return nil
	}
	idx := e.openIndex
	e.openKind = ""
	return event("content_block_stop", map[string]any{"index": idx})
}

func event(name string, payload map[string]any) []byte {
	body := mustMarshal(payload)
	var buf bytes.Buffer
	buf.WriteString("event: ")
	buf.WriteString(name)
	buf.WriteString("\ndata: ")
	buf.Write(body)
	buf.WriteString("\n\n")
	return buf.Bytes()
}
