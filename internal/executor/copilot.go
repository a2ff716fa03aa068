package executor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/byokey/byokey/internal/config"
	"github.com/byokey/byokey/internal/httpclient"
	"github.com/byokey/byokey/internal/registry"
	"github.com/byokey/byokey/internal/store"
	"github.com/byokey/byokey/internal/translator"
)

const (
	copilotIntegrationID    = "vscode-chat"
	copilotEditorVersion    = "vscode/1.95.0"
	copilotEditorPluginVer  = "copilot-chat/0.23.0"
	copilotDefaultModelPath = "model"
)

// CopilotExecutor speaks the OpenAI dialect to GitHub Copilot's chat
// completions endpoint, whose base URL is cached per-account in the
// credential's endpoint hint by the Copilot OAuth flow (,
// internal/auth/copilot.go's copilotDeviceCodeProvider.PollToken stashing
// Extras["endpoint_hint"]). Grounded on
// internal/runtime/executor/copilot_executor.go's header/URL assembly.
type CopilotExecutor struct{}

// NewCopilotExecutor builds the GitHub Copilot executor.
func NewCopilotExecutor() *CopilotExecutor { return &CopilotExecutor{} }

func (e *CopilotExecutor) Identifier() store.ProviderID { return store.Copilot }

func (e *CopilotExecutor) Execute(ctx context.Context, req Request, cred store.Credential, cfg config.ProviderConfig, client httpclient.HTTPClient) (Result, error) {
	endpoint := cred.Extras["endpoint_hint"]
	if endpoint == "" {
		return Result{}, &CredentialExpired{Provider: store.Copilot, Status: http.StatusUnauthorized}
	}

	body := substituteModel(req.Body, copilotDefaultModelPath, req.Model)
	body = applyPayloadRules(body, cfg.PayloadRules)

	headers := bearerHeader(cred.AccessToken)
	headers.Set("Copilot-Integration-Id", copilotIntegrationID)
	headers.Set("Editor-Version", copilotEditorVersion)
	headers.Set("Editor-Plugin-Version", copilotEditorPluginVer)

	url := fmt.Sprintf("%s/chat/completions", endpoint)
	return send(ctx, client, store.Copilot, translator.OpenAI, &httpclient.Request{
		Method:    http.MethodPost,
		URL:       url,
		Header:    headers,
		Body:      body,
		Streaming: req.Streaming,
	})
}

func (e *CopilotExecutor) FetchModels(ctx context.Context, cred store.Credential, client httpclient.HTTPClient) ([]registry.ModelInfo, error) {
	return registry.GenerateProviderAliases(store.Copilot, registry.StaticCatalog[store.Copilot]), nil
}
