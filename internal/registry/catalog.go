package registry

import "github.com/byokey/byokey/internal/store"

// StaticCatalog is the built-in model list per provider. Each executor's
// FetchModels answers from it; Build has no fallback of its own and fails
// when any source returns an error.
var StaticCatalog = map[store.ProviderID][]ModelInfo{
	store.Claude: {
		{ID: "claude-opus-4-1", DisplayName: "Claude Opus 4.1", ContextLength: 200000, MaxCompletionTokens: 32000},
		{ID: "claude-sonnet-4-5", DisplayName: "Claude Sonnet 4.5", ContextLength: 200000, MaxCompletionTokens: 64000},
		{ID: "claude-haiku-4-5", DisplayName: "Claude Haiku 4.5", ContextLength: 200000, MaxCompletionTokens: 64000},
	},
	store.Codex: {
		{ID: "gpt-5.1", DisplayName: "GPT-5.1", ContextLength: 400000, MaxCompletionTokens: 128000},
		{ID: "gpt-5.1-codex", DisplayName: "GPT-5.1 Codex", ContextLength: 400000, MaxCompletionTokens: 128000},
		{ID: "gpt-5.1-codex-mini", DisplayName: "GPT-5.1 Codex Mini", ContextLength: 272000, MaxCompletionTokens: 128000},
	},
	store.Copilot: {
		{ID: "gpt-4.1", DisplayName: "GPT-4.1 (Copilot)", ContextLength: 128000, MaxCompletionTokens: 16384},
		{ID: "claude-sonnet-4.5", DisplayName: "Claude Sonnet 4.5 (Copilot)", ContextLength: 200000, MaxCompletionTokens: 64000},
		{ID: "gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro (Copilot)", ContextLength: 1048576, MaxCompletionTokens: 65536},
	},
	store.Gemini: {
		{ID: "gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro", ContextLength: 1048576, MaxCompletionTokens: 65536},
		{ID: "gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash", ContextLength: 1048576, MaxCompletionTokens: 65536},
	},
	store.Kiro: {
		{ID: "amazonq-claude-sonnet-4-5", DisplayName: "Kiro Claude Sonnet 4.5", ContextLength: 200000, MaxCompletionTokens: 64000},
	},
	store.Antigravity: {
		{ID: "antigravity-gemini-2.5-pro", DisplayName: "Antigravity Gemini 2.5 Pro", ContextLength: 1048576, MaxCompletionTokens: 65536},
	},
	store.Qwen: {
		{ID: "qwen3-coder-plus", DisplayName: "Qwen3 Coder Plus", ContextLength: 256000, MaxCompletionTokens: 65536},
	},
	store.Kimi: {
		{ID: "kimi-k2", DisplayName: "Kimi K2", ContextLength: 128000, MaxCompletionTokens: 32000},
	},
	store.IFlow: {
		{ID: "iflow-deepseek-v3", DisplayName: "iFlow DeepSeek V3", ContextLength: 128000, MaxCompletionTokens: 32000},
	},
}
