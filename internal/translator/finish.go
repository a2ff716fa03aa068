package translator

// finish reason string tables per dialect ( streaming
// finish_reason mapping, reused for non-streaming responses).

func (f FinishReason) OpenAI() string {
	switch f {
	case FinishStop:
		return "stop"
	case FinishLength:
		return "length"
	case FinishToolCalls:
		return "tool_calls"
	case FinishContentFilter:
		return "content_filter"
	case FinishError:
		return "error"
	default:
		return "stop"
	}
}

func (f FinishReason) Anthropic() string {
	switch f {
	case FinishToolCalls:
		return "tool_use"
	case FinishLength:
		return "max_tokens"
	case FinishError:
		return "error"
	default:
		return "end_turn"
	}
}

func (f FinishReason) Gemini() string {
	switch f {
	case FinishLength:
		return "MAX_TOKENS"
	case FinishContentFilter:
		return "SAFETY"
	default:
		return "STOP"
	}
}

// FinishReasonFromOpenAI maps an OpenAI finish_reason string to the
// canonical FinishReason.
func FinishReasonFromOpenAI(s string) FinishReason {
	switch s {
	case "length":
		return FinishLength
	case "tool_calls", "function_call":
		return FinishToolCalls
	case "content_filter":
		return FinishContentFilter
	case "error":
		return FinishError
	default:
		return FinishStop
	}
}

// FinishReasonFromAnthropic maps an Anthropic stop_reason to the canonical
// FinishReason (end_turn→stop, tool_use→tool_calls, max_tokens→length).
func FinishReasonFromAnthropic(s string) FinishReason {
	switch s {
	case "tool_use":
		return FinishToolCalls
	case "max_tokens":
		return FinishLength
	case "error":
		return FinishError
	default:
		return FinishStop
	}
}

// FinishReasonFromGemini maps a Gemini finishReason to the canonical FinishReason.
func FinishReasonFromGemini(s string) FinishReason {
	switch s {
	case "MAX_TOKENS":
		return FinishLength
	case "SAFETY", "RECITATION":
		return FinishContentFilter
	default:
		return FinishStop
	}
}
