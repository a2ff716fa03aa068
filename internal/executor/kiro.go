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

// kiroCodeWhispererURLFmt is AWS CodeWhisperer's regional conversation
// endpoint; the region comes from the session Kiro's token exchange returned
// (internal/auth/kiro.go stashes it in Extras["region"]).
const kiroCodeWhispererURLFmt = "https://codewhisperer.%s.amazonaws.com/generateAssistantResponse"

// KiroExecutor speaks the Anthropic dialect — Kiro's model catalog is
// Claude-model-named and its CodeWhisperer backend wraps Claude
// under a thin AWS envelope.
type KiroExecutor struct{}

// NewKiroExecutor builds the AWS Kiro executor.
func NewKiroExecutor() *KiroExecutor { return &KiroExecutor{} }

func (e *KiroExecutor) Identifier() store.ProviderID { return store.Kiro }

func (e *KiroExecutor) Execute(ctx context.Context, req Request, cred store.Credential, cfg config.ProviderConfig, client httpclient.HTTPClient) (Result, error) {
	region := cred.Extras["region"]
	if region == "" {
		region = "us-east-1"
	}

	body := substituteModel(req.Body, "model", req.Model)
	body = applyPayloadRules(body, cfg.PayloadRules)

	return send(ctx, client, store.Kiro, translator.Anthropic, &httpclient.Request{
		Method:    http.MethodPost,
		URL:       fmt.Sprintf(kiroCodeWhispererURLFmt, region),
		Header:    bearerHeader(cred.AccessToken),
		Body:      body,
		Streaming: req.Streaming,
	})
}

func (e *KiroExecutor) FetchModels(ctx context.Context, cred store.Credential, client httpclient.HTTPClient) ([]registry.ModelInfo, error) {
	return registry.GenerateProviderAliases(store.Kiro, registry.StaticCatalog[store.Kiro]), nil
}
