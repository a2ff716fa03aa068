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

const (
	claudeMessagesURL      = "https://api.anthropic.com/v1/messages"
	claudeAnthropicVersion = "2023-06-01"
)

// ClaudeExecutor speaks the Anthropic dialect natively to api.anthropic.com
//. Anthropic accepts either an api_key credential via the
// x-api-key header or an OAuth access token via Authorization: Bearer.
type ClaudeExecutor struct{}

// NewClaudeExecutor builds the Claude Pro executor.
func NewClaudeExecutor() *ClaudeExecutor { return &ClaudeExecutor{} }

func (e *ClaudeExecutor) Identifier() store.ProviderID { return store.Claude }

func (e *ClaudeExecutor) Execute(ctx context.Context, req Request, cred store.Credential, cfg config.ProviderConfig, client httpclient.HTTPClient) (Result, error) {
	body := substituteModel(req.Body, "model", req.Model)
	body = applyPayloadRules(body, cfg.PayloadRules)

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("anthropic-version", claudeAnthropicVersion)
	if cred.Variant == store.VariantAPIKey {
		headers.Set("x-api-key", cred.APIKey)
	} else {
		headers.Set("Authorization", "Bearer "+cred.AccessToken)
	}

	return send(ctx, client, store.Claude, translator.Anthropic, &httpclient.Request{
		Method:    http.MethodPost,
		URL:       claudeMessagesURL,
		Header:    headers,
		Body:      body,
		Streaming: req.Streaming,
	})
}

// FetchModels returns the built-in Claude catalog plus explicit-routing
// aliases. Anthropic has no public unauthenticated model-list endpoint
// suitable for this purpose, so the static catalog (registry.StaticCatalog)
// doubles as the live answer rather than only a failure fallback — a
// deliberate scope narrowing recorded in DESIGN.md.
func (e *ClaudeExecutor) FetchModels(ctx context.Context, cred store.Credential, client httpclient.HTTPClient) ([]registry.ModelInfo, error) {
	return registry.GenerateProviderAliases(store.Claude, registry.StaticCatalog[store.Claude]), nil
}
