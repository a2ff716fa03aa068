package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/byokey/byokey/internal/authmanager"
	"github.com/byokey/byokey/internal/config"
	"github.com/byokey/byokey/internal/executor"
	"github.com/byokey/byokey/internal/httpclient"
	"github.com/byokey/byokey/internal/registry"
	"github.com/byokey/byokey/internal/store"
	"github.com/byokey/byokey/internal/translator/build"
	"github.com/byokey/byokey/internal/usage"
)

type fakeModelSource struct{ models []registry.ModelInfo }

func (f fakeModelSource) FetchModels(context.Context) ([]registry.ModelInfo, error) {
	return f.models, nil
}

// fakeExecutor lets each test script a sequence of Execute results, so the
// CredentialExpired-then-refresh-then-retry path can be exercised without a
// live upstream.
type fakeExecutor struct {
	id      store.ProviderID
	results []executor.Result
	errs    []error
	calls   int
}

func (f *fakeExecutor) Identifier() store.ProviderID { return f.id }

func (f *fakeExecutor) Execute(ctx context.Context, req executor.Request, cred store.Credential, cfg config.ProviderConfig, client httpclient.HTTPClient) (executor.Result, error) {
	i := f.calls
	f.calls++
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.results[i], err
}

func (f *fakeExecutor) FetchModels(ctx context.Context, cred store.Credential, client httpclient.HTTPClient) ([]registry.ModelInfo, error) {
	return registry.StaticCatalog[f.id], nil
}

func testDispatcher(t *testing.T, exec *fakeExecutor) (*Dispatcher, *store.MemoryStore) {
	t.Helper()

	cfgPath := ""
	cfg, err := config.NewSnapshot(cfgPath)
	if err != nil {
		t.Fatalf("config.NewSnapshot: %v", err)
	}
	c := cfg.Load()
	c.Providers = map[string]config.ProviderConfig{
		"claude": {},
	}

	reg, err := registry.Build(context.Background(), c, map[store.ProviderID]registry.ProviderModelSource{
		store.Claude: fakeModelSource{models: registry.StaticCatalog[store.Claude]},
	})
	if err != nil {
		t.Fatalf("registry.Build: %v", err)
	}

	ms := store.NewMemoryStore()
	if err := ms.Put(context.Background(), store.Account{
		Provider:  store.Claude,
		AccountID: "acct1",
		IsActive:  true,
		Credential: store.Credential{
			Variant: store.VariantAPIKey,
			APIKey:  "sk-test",
		},
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	auth := authmanager.New(ms, nil, nil)

	executors := map[store.ProviderID]executor.Executor{
		store.Claude: exec,
	}

	d := New(
		cfg,
		registry.NewSnapshot(reg),
		auth,
		executors,
		nil,
		build.Registry(),
		usage.NewTracker(),
		usage.NewEstimator(),
		nil,
	)
	return d, ms
}

func claudeResponseBody(text string) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":    "msg_1",
		"type":  "message",
		"role":  "assistant",
		"model": "claude-sonnet-4-5",
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 3, "output_tokens": 5},
	})
	return body
}

func TestHandleChatSuccessPathTranslatesAndReturns200(t *testing.T) {
	exec := &fakeExecutor{
		id:      store.Claude,
		results: []executor.Result{{Body: claudeResponseBody("hello there")}},
	}
	d, _ := testDispatcher(t, exec)

	reqBody := `{"model":"claude-sonnet-4-5","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(reqBody))
	w := httptest.NewRecorder()
	d.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "hello there") {
		t.Fatalf("expected translated body to contain response text, got %s", w.Body.String())
	}
	if exec.calls != 1 {
		t.Fatalf("expected exactly one Execute call, got %d", exec.calls)
	}
}

func TestHandleChatUnknownModelReturns404(t *testing.T) {
	exec := &fakeExecutor{id: store.Claude}
	d, _ := testDispatcher(t, exec)

	reqBody := `{"model":"totally-unknown-model","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(reqBody))
	w := httptest.NewRecorder()
	d.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown model, got %d: %s", w.Code, w.Body.String())
	}
	if exec.calls != 0 {
		t.Fatalf("expected no Execute call for an unresolved model, got %d", exec.calls)
	}
}

func TestHandleChatRetriesOnceAfterCredentialExpired(t *testing.T) {
	exec := &fakeExecutor{
		id: store.Claude,
		results: []executor.Result{
			{},
			{Body: claudeResponseBody("recovered")},
		},
		errs: []error{
			&executor.CredentialExpired{Provider: store.Claude, Status: http.StatusUnauthorized},
			nil,
		},
	}
	d, _ := testDispatcher(t, exec)

	reqBody := `{"model":"claude-sonnet-4-5","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(reqBody))
	w := httptest.NewRecorder()
	d.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after the refresh-and-retry, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "recovered") {
		t.Fatalf("expected the retried response body, got %s", w.Body.String())
	}
	if exec.calls != 2 {
		t.Fatalf("expected exactly two Execute calls (original + one retry), got %d", exec.calls)
	}
}

func TestHandleListModelsReturnsExactEnabledSet(t *testing.T) {
	exec := &fakeExecutor{id: store.Claude}
	d, _ := testDispatcher(t, exec)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	d.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out modelList
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := registry.StaticCatalog[store.Claude]
	if len(out.Data) != len(want) {
		t.Fatalf("expected %d models, got %d: %+v", len(want), len(out.Data), out.Data)
	}
	seen := map[string]bool{}
	for _, m := range out.Data {
		seen[m.ID] = true
	}
	for _, m := range want {
		if !seen[m.ID] {
			t.Fatalf("expected model %q in /v1/models output", m.ID)
		}
	}
}

func TestHandleUsageReportsRecordedRequest(t *testing.T) {
	exec := &fakeExecutor{
		id:      store.Claude,
		results: []executor.Result{{Body: claudeResponseBody("hi")}},
	}
	d, _ := testDispatcher(t, exec)

	chatReq := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(
		`{"model":"claude-sonnet-4-5","messages":[{"role":"user","content":"hi"}]}`))
	d.Routes().ServeHTTP(httptest.NewRecorder(), chatReq)

	req := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
	w := httptest.NewRecorder()
	d.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var counters []usageCounter
	if err := json.Unmarshal(w.Body.Bytes(), &counters); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(counters) != 1 || counters[0].RequestCount != 1 {
		t.Fatalf("expected one counter with RequestCount=1, got %+v", counters)
	}
}

func TestRequestIDHeaderIsAlwaysSet(t *testing.T) {
	exec := &fakeExecutor{id: store.Claude}
	d, _ := testDispatcher(t, exec)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	d.Routes().ServeHTTP(w, req)

	if w.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected X-Request-Id to be set on every response")
	}
}
