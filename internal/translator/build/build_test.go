package build

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/byokey/byokey/internal/translator"
	"github.com/tidwall/gjson"
)

func TestTranslateRequestOpenAIToAnthropicHoistsSystemMessage(t *testing.T) {
	reg := Registry()
	raw := []byte(`{"model":"claude-sonnet-4-5","messages":[{"role":"system","content":"be terse"},{"role":"user","content":"hi"}]}`)
	out, err := reg.TranslateRequest(translator.OpenAI, translator.Anthropic, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := gjson.GetBytes(out, "system").String()
	if got != "be terse" {
		t.Fatalf("expected system field %q, got %q", "be terse", got)
	}
	if gjson.GetBytes(out, "messages.0.role").String() != "user" {
		t.Fatalf("expected system message excluded from messages array, got %s", out)
	}
}

// Scenario #6: adjacent-role merging across a dialect boundary.
func TestAdjacentRoleMergeAcrossOpenAIToAnthropic(t *testing.T) {
	reg := Registry()
	raw := []byte(`{"model":"claude-sonnet-4-5","messages":[{"role":"user","content":"a"},{"role":"user","content":"b"}]}`)
	out, err := reg.TranslateRequest(translator.OpenAI, translator.Anthropic, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	messages := gjson.GetBytes(out, "messages").Array()
	if len(messages) != 1 {
		t.Fatalf("expected a single merged user message, got %d", len(messages))
	}
	text := messages[0].Get("content.0.text").String()
	if text != "a\n\nb" {
		t.Fatalf("expected merged text %q, got %q", "a\n\nb", text)
	}
}

// Scenario #2: tool-call round trip O -> A -> O.
func TestToolCallRoundTripOpenAIAnthropicOpenAI(t *testing.T) {
	reg := Registry()
	raw := []byte(`{
		"model":"claude-sonnet-4-5",
		"messages":[{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"Paris\"}"}}]}]
	}`)
	toAnthropic, err := reg.TranslateRequest(translator.OpenAI, translator.Anthropic, raw)
	if err != nil {
		t.Fatalf("O->A: unexpected error: %v", err)
	}
	block := gjson.GetBytes(toAnthropic, "messages.0.content.0")
	if block.Get("type").String() != "tool_use" {
		t.Fatalf("expected tool_use block, got %s", block.Raw)
	}
	if block.Get("input.city").String() != "Paris" {
		t.Fatalf("expected parsed input object, got %s", block.Get("input").Raw)
	}

	backToOpenAI, err := reg.TranslateRequest(translator.Anthropic, translator.OpenAI, toAnthropic)
	if err != nil {
		t.Fatalf("A->O: unexpected error: %v", err)
	}
	tc := gjson.GetBytes(backToOpenAI, "messages.0.tool_calls.0")
	if tc.Get("function.name").String() != "get_weather" {
		t.Fatalf("expected function name preserved, got %s", tc.Raw)
	}
	var args map[string]string
	if err := json.Unmarshal([]byte(tc.Get("function.arguments").String()), &args); err != nil {
		t.Fatalf("expected re-serialized JSON-string arguments, got %q: %v", tc.Get("function.arguments").String(), err)
	}
	if args["city"] != "Paris" {
		t.Fatalf("expected city=Paris preserved through round trip, got %v", args)
	}
}

// Scenario #1: OpenAI->Claude streaming text, translated back A->O.
func TestStreamingAnthropicToOpenAITextScenario(t *testing.T) {
	reg := Registry()
	decoder := reg.NewDecoder(translator.Anthropic)
	encoder := reg.NewEncoder(translator.OpenAI)

	frames := []string{
		"event: message_start\ndata: {\"message\":{\"role\":\"assistant\"}}",
		"event: content_block_start\ndata: {\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}",
		"event: content_block_delta\ndata: {\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}",
		"event: content_block_delta\ndata: {\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\" there\"}}",
		"event: content_block_stop\ndata: {\"index\":0}",
		"event: message_delta\ndata: {\"delta\":{\"stop_reason\":\"end_turn\"}}",
		"event: message_stop\ndata: {}",
	}

	var rendered strings.Builder
	for _, f := range frames {
		deltas, err := decoder.Feed([]byte(f))
		if err != nil {
			t.Fatalf("decode error: %v", err)
		}
		for _, d := range deltas {
			rendered.Write(encoder.Encode(d))
		}
	}

	output := rendered.String()
	if !strings.Contains(output, "data: [DONE]") {
		t.Fatalf("expected a terminating [DONE] frame, got %q", output)
	}

	var concatenated string
	for _, frame := range strings.Split(output, "\n\n") {
		frame = strings.TrimSpace(strings.TrimPrefix(frame, "data:"))
		if frame == "" || frame == "[DONE]" {
			continue
		}
		concatenated += gjson.Get(frame, "choices.0.delta.content").String()
	}
	if concatenated != "Hi there" {
		t.Fatalf("expected concatenated delta.content %q, got %q", "Hi there", concatenated)
	}
}

// : a tool call whose `arguments` fails to parse as JSON must pass
// through raw, wrapped as input={_raw: string}, rather than error out.
func TestMalformedToolArgumentsFallBackToRaw(t *testing.T) {
	reg := Registry()
	raw := []byte(`{
		"model":"claude-sonnet-4-5",
		"messages":[{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"f","arguments":"not json"}}]}]
	}`)
	out, err := reg.TranslateRequest(translator.OpenAI, translator.Anthropic, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	block := gjson.GetBytes(out, "messages.0.content.0")
	if block.Get("input._raw").String() != "not json" {
		t.Fatalf("expected input._raw fallback, got %s", block.Get("input").Raw)
	}
}

func TestTranslateRequestOpenAIToGeminiMovesSystemInstruction(t *testing.T) {
	reg := Registry()
	raw := []byte(`{"model":"gemini-2.5-pro","messages":[{"role":"system","content":"be terse"},{"role":"user","content":"hi"}]}`)
	out, err := reg.TranslateRequest(translator.OpenAI, translator.Gemini, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gjson.GetBytes(out, "systemInstruction.parts.0.text").String() != "be terse" {
		t.Fatalf("expected systemInstruction text, got %s", out)
	}
	if gjson.GetBytes(out, "contents.0.role").String() != "user" {
		t.Fatalf("expected a single user content entry, got %s", out)
	}
}

// §4.3 reasoning rule: Gemini's wire format has no thinking representation,
// so a thinking block must be stripped on the way in rather than rendered
// as plain visible text.
func TestTranslateRequestToGeminiStripsThinkingBlock(t *testing.T) {
	reg := Registry()
	raw := []byte(`{
		"model":"claude-sonnet-4-5",
		"messages":[{"role":"assistant","content":[{"type":"thinking","thinking":"secret reasoning"},{"type":"text","text":"the answer"}]}]
	}`)
	out, err := reg.TranslateRequest(translator.Anthropic, translator.Gemini, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(out), "secret reasoning") {
		t.Fatalf("expected thinking block stripped before reaching Gemini, got %s", out)
	}
	parts := gjson.GetBytes(out, "contents.0.parts").Array()
	if len(parts) != 1 || parts[0].Get("text").String() != "the answer" {
		t.Fatalf("expected only the text part to survive, got %s", out)
	}
}

// A forced tool_choice still strips thinking even for a dialect (OpenAI)
// that could otherwise carry it.
func TestTranslateRequestForcedToolChoiceStripsThinkingForOpenAI(t *testing.T) {
	reg := Registry()
	raw := []byte(`{
		"model":"claude-sonnet-4-5",
		"tool_choice":{"type":"any"},
		"messages":[{"role":"assistant","content":[{"type":"thinking","thinking":"secret reasoning"},{"type":"text","text":"the answer"}]}]
	}`)
	out, err := reg.TranslateRequest(translator.Anthropic, translator.OpenAI, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(out), "secret reasoning") {
		t.Fatalf("expected thinking block stripped under a forced tool_choice, got %s", out)
	}
}

// §4.3/§7: a mid-stream upstream error must surface as the caller's own
// error event on every dialect, never a silently dropped delta.
func TestDeltaErrorRendersOnEveryDialect(t *testing.T) {
	reg := Registry()
	cases := []struct {
		dialect translator.Dialect
		check   func(t *testing.T, frame string)
	}{
		{translator.OpenAI, func(t *testing.T, frame string) {
			if gjson.Get(frame, "choices.0.finish_reason").String() != "error" {
				t.Fatalf("expected finish_reason=error, got %s", frame)
			}
			if gjson.Get(frame, "error.message").String() != "upstream exploded" {
				t.Fatalf("expected error.message preserved, got %s", frame)
			}
		}},
		{translator.Anthropic, func(t *testing.T, frame string) {
			if !strings.Contains(frame, "event: message_delta") {
				t.Fatalf("expected a message_delta event, got %q", frame)
			}
			if !strings.Contains(frame, "event: message_stop") {
				t.Fatalf("expected a message_stop event, got %q", frame)
			}
			data := strings.TrimSpace(strings.SplitN(strings.Split(frame, "event: message_delta")[1], "data:", 2)[1])
			data = strings.SplitN(data, "\n", 2)[0]
			if gjson.Get(data, "delta.stop_reason").String() != "error" {
				t.Fatalf("expected stop_reason=error, got %s", data)
			}
			if gjson.Get(data, "error.message").String() != "upstream exploded" {
				t.Fatalf("expected error.message preserved, got %s", data)
			}
		}},
		{translator.Gemini, func(t *testing.T, frame string) {
			if gjson.Get(frame, "candidates.0.finishReason").String() != "OTHER" {
				t.Fatalf("expected finishReason=OTHER, got %s", frame)
			}
			if gjson.Get(frame, "error.message").String() != "upstream exploded" {
				t.Fatalf("expected error.message preserved, got %s", frame)
			}
		}},
	}

	for _, tc := range cases {
		encoder := reg.NewEncoder(tc.dialect)
		out := encoder.Encode(translator.StreamDelta{Kind: translator.DeltaError, ErrorMessage: "upstream exploded"})
		if len(out) == 0 {
			t.Fatalf("%s: expected a non-empty frame for DeltaError, got none", tc.dialect)
		}
		tc.check(t, string(out))
	}
}

func TestTranslateResponseGeminiToOpenAIMapsFinishReason(t *testing.T) {
	reg := Registry()
	raw := []byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hello"}]},"finishReason":"MAX_TOKENS"}],"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":5}}`)
	out, err := reg.TranslateResponse(translator.Gemini, translator.OpenAI, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gjson.GetBytes(out, "choices.0.finish_reason").String() != "length" {
		t.Fatalf("expected finish_reason length, got %s", out)
	}
	if gjson.GetBytes(out, "choices.0.message.content").String() != "hello" {
		t.Fatalf("expected message content preserved, got %s", out)
	}
	if gjson.GetBytes(out, "usage.prompt_tokens").Int() != 10 {
		t.Fatalf("expected prompt_tokens preserved, got %s", out)
	}
}
