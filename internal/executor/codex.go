package executor

import (
	"context"
	"net/http"

	"github.com/byokey/byokey/internal/config"
	"github.com/byokey/byokey/internal/httpclient"
	"github.com/byokey/byokey/internal/registry"
	"github.com/byokey/byokey/internal/store"
	"github.com/byokey/byokey/internal/translator"
)

// codexChatCompletionsURL targets the stable public OpenAI API shape rather
// than the undocumented ChatGPT-session backend route the official Codex
// CLI uses internally — no example file in the pack captures that route's
// exact path or headers, so this executor trades CLI parity for a
// verifiable, documented upstream (an Open Question decision, see DESIGN.md).
const codexChatCompletionsURL = "https://api.openai.com/v1/chat/completions"

// CodexExecutor speaks the OpenAI dialect natively.
type CodexExecutor struct{}

// NewCodexExecutor builds the ChatGPT Plus/Codex executor.
func NewCodexExecutor() *CodexExecutor { return &CodexExecutor{} }

func (e *CodexExecutor) Identifier() store.ProviderID { return store.Codex }

func (e *CodexExecutor) Execute(ctx context.Context, req Request, cred store.Credential, cfg config.ProviderConfig, client httpclient.HTTPClient) (Result, error) {
	body := substituteModel(req.Body, "model", req.Model)
	body = applyPayloadRules(body, cfg.PayloadRules)

	return send(ctx, client, store.Codex, translator.OpenAI, &httpclient.Request{
		Method:    http.MethodPost,
		URL:       codexChatCompletionsURL,
		Header:    bearerHeader(tokenFromCredential(cred)),
		Body:      body,
		Streaming: req.Streaming,
	})
}

func (e *CodexExecutor) FetchModels(ctx context.Context, cred store.Credential, client httpclient.HTTPClient) ([]registry.ModelInfo, error) {
	return registry.GenerateProviderAliases(store.Codex, registry.StaticCatalog[store.Codex]), nil
}
