package executor

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/byokey/byokey/internal/byokeyerr"
	"github.com/byokey/byokey/internal/config"
	"github.com/byokey/byokey/internal/httpclient"
	"github.com/byokey/byokey/internal/store"
	"github.com/byokey/byokey/internal/translator"
)

// fakeClient is a scripted httpclient.HTTPClient stand-in, avoiding a real
// network round trip.
type fakeClient struct {
	lastReq *httpclient.Request
	status  int
	body    string
	header  http.Header
	err     error
}

func (f *fakeClient) Do(ctx context.Context, r *httpclient.Request) (*httpclient.Response, error) {
	f.lastReq = r
	if f.err != nil {
		return nil, f.err
	}
	h := f.header
	if h == nil {
		h = http.Header{}
	}
	return &httpclient.Response{
		StatusCode: f.status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func TestClaudeExecutorSetsAPIKeyHeader(t *testing.T) {
	client := &fakeClient{status: 200, body: `{"ok":true}`}
	e := NewClaudeExecutor()
	cred := store.Credential{Variant: store.VariantAPIKey, APIKey: "sk-ant-test"}

	res, err := e.Execute(context.Background(), Request{Model: "claude-opus-4-1", Body: []byte(`{"model":"x"}`)}, cred, config.ProviderConfig{}, client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Dialect != translator.Anthropic {
		t.Fatalf("expected Anthropic dialect, got %v", res.Dialect)
	}
	if got := client.lastReq.Header.Get("x-api-key"); got != "sk-ant-test" {
		t.Fatalf("expected x-api-key header, got %q", got)
	}
	if got := client.lastReq.Header.Get("anthropic-version"); got != claudeAnthropicVersion {
		t.Fatalf("expected anthropic-version %q, got %q", claudeAnthropicVersion, got)
	}
	if !strings.Contains(string(client.lastReq.Body), `"model":"claude-opus-4-1"`) {
		t.Fatalf("expected substituted model in body, got %s", client.lastReq.Body)
	}
}

func TestClaudeExecutorOAuthUsesBearer(t *testing.T) {
	client := &fakeClient{status: 200, body: `{}`}
	e := NewClaudeExecutor()
	cred := store.Credential{Variant: store.VariantOAuthToken, AccessToken: "oauth-token"}

	if _, err := e.Execute(context.Background(), Request{Model: "claude-opus-4-1", Body: []byte(`{}`)}, cred, config.ProviderConfig{}, client); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := client.lastReq.Header.Get("Authorization"); got != "Bearer oauth-token" {
		t.Fatalf("expected bearer header, got %q", got)
	}
	if client.lastReq.Header.Get("x-api-key") != "" {
		t.Fatal("did not expect x-api-key header for an OAuth credential")
	}
}

func TestSendMapsTokenExpiryTo401AndExpiredBody403(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"bare 401", 401, `{}`},
		{"403 with expired_token", 403, `{"error":"expired_token"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			client := &fakeClient{status: c.status, body: c.body}
			e := NewCodexExecutor()
			cred := store.Credential{Variant: store.VariantOAuthToken, AccessToken: "stale"}
			_, err := e.Execute(context.Background(), Request{Model: "gpt-5.1", Body: []byte(`{}`)}, cred, config.ProviderConfig{}, client)
			var ce *CredentialExpired
			if !asCredentialExpired(err, &ce) {
				t.Fatalf("expected *CredentialExpired, got %v (%T)", err, err)
			}
			if ce.Provider != store.Codex {
				t.Fatalf("expected provider codex, got %v", ce.Provider)
			}
		})
	}
}

func TestSendMapsOtherNon2xxToUpstreamError(t *testing.T) {
	client := &fakeClient{status: 500, body: `internal error`}
	e := NewCodexExecutor()
	cred := store.Credential{Variant: store.VariantOAuthToken, AccessToken: "tok"}
	_, err := e.Execute(context.Background(), Request{Model: "gpt-5.1", Body: []byte(`{}`)}, cred, config.ProviderConfig{}, client)
	be, ok := byokeyerr.As(err)
	if !ok {
		t.Fatalf("expected *byokeyerr.Error, got %v", err)
	}
	if be.Kind != byokeyerr.KindUpstreamError {
		t.Fatalf("expected KindUpstreamError, got %v", be.Kind)
	}
	if be.StatusCode() != 500 {
		t.Fatalf("expected the upstream status to survive as 500, got %d", be.StatusCode())
	}
	if !strings.Contains(be.BodyExcerpt, "internal error") {
		t.Fatalf("expected body excerpt to contain upstream body, got %q", be.BodyExcerpt)
	}
}

func TestCopilotExecutorRequiresEndpointHint(t *testing.T) {
	client := &fakeClient{status: 200, body: `{}`}
	e := NewCopilotExecutor()
	cred := store.Credential{Variant: store.VariantOAuthToken, AccessToken: "tok"}
	_, err := e.Execute(context.Background(), Request{Model: "gpt-4.1", Body: []byte(`{}`)}, cred, config.ProviderConfig{}, client)
	var ce *CredentialExpired
	if !asCredentialExpired(err, &ce) {
		t.Fatalf("expected *CredentialExpired when endpoint_hint is missing, got %v", err)
	}
}

func TestCopilotExecutorSetsIntegrationHeaders(t *testing.T) {
	client := &fakeClient{status: 200, body: `{}`}
	e := NewCopilotExecutor()
	cred := store.Credential{
		Variant:     store.VariantOAuthToken,
		AccessToken: "tok",
		Extras:      map[string]string{"endpoint_hint": "https://api.individual.githubcopilot.com"},
	}
	if _, err := e.Execute(context.Background(), Request{Model: "gpt-4.1", Body: []byte(`{}`)}, cred, config.ProviderConfig{}, client); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := client.lastReq.Header.Get("Copilot-Integration-Id"); got != copilotIntegrationID {
		t.Fatalf("expected Copilot-Integration-Id %q, got %q", copilotIntegrationID, got)
	}
	if !strings.HasSuffix(client.lastReq.URL, "/chat/completions") {
		t.Fatalf("expected URL built from endpoint hint, got %q", client.lastReq.URL)
	}
}

func TestGeminiExecutorUsesKeyQueryParamForAPIKey(t *testing.T) {
	client := &fakeClient{status: 200, body: `{}`}
	e := NewGeminiExecutor()
	cred := store.Credential{Variant: store.VariantAPIKey, APIKey: "gem-key"}
	_, err := e.Execute(context.Background(), Request{Model: "gemini-2.5-pro", Body: []byte(`{}`)}, cred, config.ProviderConfig{}, client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(client.lastReq.URL, "key=gem-key") {
		t.Fatalf("expected key query param, got %q", client.lastReq.URL)
	}
	if client.lastReq.Header.Get("Authorization") != "" {
		t.Fatal("did not expect Authorization header for an api_key credential")
	}
}

func TestGeminiExecutorStreamingPicksStreamAction(t *testing.T) {
	client := &fakeClient{status: 200, body: "data: {}\n\n", header: http.Header{"Content-Type": []string{"text/event-stream"}}}
	e := NewGeminiExecutor()
	cred := store.Credential{Variant: store.VariantOAuthToken, AccessToken: "tok"}
	res, err := e.Execute(context.Background(), Request{Model: "gemini-2.5-pro", Body: []byte(`{}`), Streaming: true}, cred, config.ProviderConfig{}, client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stream == nil {
		t.Fatal("expected a streaming Result body")
	}
	if !strings.Contains(client.lastReq.URL, "streamGenerateContent") {
		t.Fatalf("expected streamGenerateContent action, got %q", client.lastReq.URL)
	}
	parsed, err := url.Parse(client.lastReq.URL)
	if err != nil {
		t.Fatalf("expected a well-formed URL, got %q: %v", client.lastReq.URL, err)
	}
	if parsed.Query().Get("alt") != "sse" {
		t.Fatalf("expected a well-formed ?...alt=sse query parameter, got %q", client.lastReq.URL)
	}
}

// An OAuth credential has no ?key= to anchor the query string, so it's the
// case most exposed to a missing-? regression in alt=sse construction.
func TestGeminiExecutorOAuthStreamingProducesWellFormedURL(t *testing.T) {
	client := &fakeClient{status: 200, body: "data: {}\n\n", header: http.Header{"Content-Type": []string{"text/event-stream"}}}
	e := NewGeminiExecutor()
	cred := store.Credential{Variant: store.VariantOAuthToken, AccessToken: "tok"}
	_, err := e.Execute(context.Background(), Request{Model: "gemini-2.5-pro", Body: []byte(`{}`), Streaming: true}, cred, config.ProviderConfig{}, client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := url.Parse(client.lastReq.URL)
	if err != nil {
		t.Fatalf("expected a well-formed URL, got %q: %v", client.lastReq.URL, err)
	}
	if parsed.RawQuery != "alt=sse" {
		t.Fatalf("expected query string %q, got %q in URL %q", "alt=sse", parsed.RawQuery, client.lastReq.URL)
	}
}

// An API-key credential combines ?key=... with &alt=sse; both must land in
// the query string, not string-concatenated ad hoc.
func TestGeminiExecutorAPIKeyStreamingProducesWellFormedURL(t *testing.T) {
	client := &fakeClient{status: 200, body: "data: {}\n\n", header: http.Header{"Content-Type": []string{"text/event-stream"}}}
	e := NewGeminiExecutor()
	cred := store.Credential{Variant: store.VariantAPIKey, APIKey: "api-key-1"}
	_, err := e.Execute(context.Background(), Request{Model: "gemini-2.5-pro", Body: []byte(`{}`), Streaming: true}, cred, config.ProviderConfig{}, client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := url.Parse(client.lastReq.URL)
	if err != nil {
		t.Fatalf("expected a well-formed URL, got %q: %v", client.lastReq.URL, err)
	}
	q := parsed.Query()
	if q.Get("key") != "api-key-1" || q.Get("alt") != "sse" {
		t.Fatalf("expected key and alt=sse query parameters, got %q in URL %q", q.Encode(), client.lastReq.URL)
	}
}

func TestKiroExecutorDefaultsRegion(t *testing.T) {
	client := &fakeClient{status: 200, body: `{}`}
	e := NewKiroExecutor()
	cred := store.Credential{Variant: store.VariantOAuthToken, AccessToken: "tok"}
	_, err := e.Execute(context.Background(), Request{Model: "amazonq-claude-sonnet-4-5", Body: []byte(`{}`)}, cred, config.ProviderConfig{}, client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(client.lastReq.URL, "us-east-1") {
		t.Fatalf("expected default region in URL, got %q", client.lastReq.URL)
	}
}

func TestKiroExecutorUsesSessionRegion(t *testing.T) {
	client := &fakeClient{status: 200, body: `{}`}
	e := NewKiroExecutor()
	cred := store.Credential{Variant: store.VariantOAuthToken, AccessToken: "tok", Extras: map[string]string{"region": "eu-west-1"}}
	_, err := e.Execute(context.Background(), Request{Model: "amazonq-claude-sonnet-4-5", Body: []byte(`{}`)}, cred, config.ProviderConfig{}, client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(client.lastReq.URL, "eu-west-1") {
		t.Fatalf("expected session region in URL, got %q", client.lastReq.URL)
	}
}

func TestStubExecutorsFailExecuteButServeCatalog(t *testing.T) {
	for _, e := range []Executor{NewAntigravityExecutor(), NewQwenExecutor(), NewKimiExecutor(), NewIFlowExecutor()} {
		client := &fakeClient{status: 200, body: `{}`}
		_, err := e.Execute(context.Background(), Request{Model: "whatever", Body: []byte(`{}`)}, store.Credential{}, config.ProviderConfig{}, client)
		if err == nil {
			t.Fatalf("%s: expected Execute to fail for an unimplemented provider", e.Identifier())
		}
		models, err := e.FetchModels(context.Background(), store.Credential{}, client)
		if err != nil {
			t.Fatalf("%s: unexpected FetchModels error: %v", e.Identifier(), err)
		}
		if len(models) == 0 {
			t.Fatalf("%s: expected a non-empty static catalog", e.Identifier())
		}
	}
}

func TestModelSourceFetchModelsUsesAcquiredCredential(t *testing.T) {
	client := &fakeClient{status: 200, body: `{}`}
	acquired := store.Credential{Variant: store.VariantAPIKey, APIKey: "k"}
	src := &ModelSource{
		Exec:   NewClaudeExecutor(),
		Client: client,
		Acquire: func(ctx context.Context) (store.Credential, error) {
			return acquired, nil
		},
	}
	models, err := src.FetchModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) == 0 {
		t.Fatal("expected a non-empty model list")
	}
}

// asCredentialExpired type-asserts err to *CredentialExpired without
// unwrapping, as the dispatcher's retry check does.
func asCredentialExpired(err error, target **CredentialExpired) bool {
	ce, ok := err.(*CredentialExpired)
	if !ok {
		return false
	}
	*target = ce
	return true
}
