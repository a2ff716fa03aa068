package executor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/byokey/byokey/internal/config"
	"github.com/byokey/byokey/internal/httpclient"
	"github.com/byokey/byokey/internal/registry"
	"github.com/byokey/byokey/internal/store"
	"github.com/byokey/byokey/internal/translator"
)

// geminiBaseURL is the public Generative Language API. The
// action segment (generateContent or streamGenerateContent) is chosen by
// req.Streaming, matching Google's own route shape at
// /v1beta/models/{model}:{action}.
const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/%s:%s"

// GeminiExecutor speaks the Gemini dialect natively. Gemini accepts either an
// api_key credential as a ?key= query parameter or an OAuth access token via
// Authorization: Bearer, mirroring the Anthropic api_key/OAuth split.
type GeminiExecutor struct{}

// NewGeminiExecutor builds the Google Gemini executor.
func NewGeminiExecutor() *GeminiExecutor { return &GeminiExecutor{} }

func (e *GeminiExecutor) Identifier() store.ProviderID { return store.Gemini }

func (e *GeminiExecutor) Execute(ctx context.Context, req Request, cred store.Credential, cfg config.ProviderConfig, client httpclient.HTTPClient) (Result, error) {
	action := "generateContent"
	if req.Streaming {
		action = "streamGenerateContent"
	}
	reqURL := fmt.Sprintf(geminiBaseURL, req.Model, action)

	body := applyPayloadRules(req.Body, cfg.PayloadRules)

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	query := url.Values{}
	if cred.Variant == store.VariantAPIKey {
		query.Set("key", cred.APIKey)
	} else {
		headers.Set("Authorization", "Bearer "+cred.AccessToken)
	}
	if req.Streaming {
		query.Set("alt", "sse")
	}
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	return send(ctx, client, store.Gemini, translator.Gemini, &httpclient.Request{
		Method:    http.MethodPost,
		URL:       reqURL,
		Header:    headers,
		Body:      body,
		Streaming: req.Streaming,
	})
}

func (e *GeminiExecutor) FetchModels(ctx context.Context, cred store.Credential, client httpclient.HTTPClient) ([]registry.ModelInfo, error) {
	return registry.GenerateProviderAliases(store.Gemini, registry.StaticCatalog[store.Gemini]), nil
}
