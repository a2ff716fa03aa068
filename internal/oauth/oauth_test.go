package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestChallengeFromVerifierIsDeterministic(t *testing.T) {
	verifier, err := GenerateVerifier()
	if err != nil {
		t.Fatal(err)
	}
	if len(verifier) < 43 {
		t.Fatalf("expected verifier length >= 43, got %d", len(verifier))
	}
	c1 := ChallengeFromVerifier(verifier)
	c2 := ChallengeFromVerifier(verifier)
	if c1 != c2 {
		t.Fatal("expected challenge to be deterministic for the same verifier")
	}
}

func TestGenerateStateIsUnique(t *testing.T) {
	s1, err := GenerateState()
	if err != nil {
		t.Fatal(err)
	}
	s2, err := GenerateState()
	if err != nil {
		t.Fatal(err)
	}
	if s1 == s2 {
		t.Fatal("expected two distinct state values")
	}
}

type fakeExchanger struct {
	authURL string
	result  Result
	err     error
}

func (f *fakeExchanger) AuthorizationURL(redirectURI, state, codeChallenge string) string {
	return f.authURL
}

func (f *fakeExchanger) Exchange(ctx context.Context, redirectURI, code, codeVerifier string) (Result, error) {
	return f.result, f.err
}

func callbackURL(t *testing.T, flow *PKCELoopbackFlow, state string) string {
	t.Helper()
	addr, ok := flow.listener.Addr().(*net.TCPAddr)
	if !ok {
		t.Fatalf("expected *net.TCPAddr, got %T", flow.listener.Addr())
	}
	u := url.URL{
		Scheme:   "http",
		Host:     fmt.Sprintf("127.0.0.1:%d", addr.Port),
		Path:     "/callback",
		RawQuery: url.Values{"code": {"abc"}, "state": {state}}.Encode(),
	}
	return u.String()
}

func TestPKCELoopbackFlowHappyPath(t *testing.T) {
	flow := NewPKCELoopbackFlow("claude", &fakeExchanger{
		authURL: "https://example.com/authorize",
		result:  Result{AccessToken: "at-123"},
	}, nil)

	start, err := flow.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if start.VerificationURL == "" {
		t.Fatal("expected non-empty verification URL")
	}

	target := callbackURL(t, flow, flow.state)
	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = http.Get(target)
	}()

	result, err := flow.Finish(context.Background())
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if result.AccessToken != "at-123" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPKCELoopbackFlowRejectsStateMismatch(t *testing.T) {
	flow := NewPKCELoopbackFlow("claude", &fakeExchanger{authURL: "https://example.com/authorize"}, nil)
	if _, err := flow.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	target := callbackURL(t, flow, "wrong-state")
	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = http.Get(target)
	}()

	_, err := flow.Finish(context.Background())
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) || authErr.Kind != StateMismatch {
		t.Fatalf("expected StateMismatch error, got %v", err)
	}
}

type fakeDeviceCodeProvider struct {
	dc        DeviceCodeResponse
	attempts  int
	succeedAt int
	result    Result
}

func (f *fakeDeviceCodeProvider) RequestDeviceCode(ctx context.Context) (DeviceCodeResponse, error) {
	return f.dc, nil
}

func (f *fakeDeviceCodeProvider) PollToken(ctx context.Context, deviceCode string) (Result, bool, bool, error) {
	f.attempts++
	if f.attempts >= f.succeedAt {
		return f.result, true, false, nil
	}
	return Result{}, false, false, nil
}

func TestDeviceCodeFlowPollsUntilSuccess(t *testing.T) {
	backend := &fakeDeviceCodeProvider{
		dc:        DeviceCodeResponse{DeviceCode: "dc", UserCode: "ABCD-1234", VerificationURI: "https://example.com/device", ExpiresIn: 60, IntervalSeconds: 1},
		succeedAt: 3,
		result:    Result{AccessToken: "dc-token"},
	}
	flow := NewDeviceCodeFlow("copilot", backend)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start, err := flow.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if start.UserCode != "ABCD-1234" {
		t.Fatalf("unexpected user code: %q", start.UserCode)
	}

	result, err := flow.Finish(ctx)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if result.AccessToken != "dc-token" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if backend.attempts != 3 {
		t.Fatalf("expected exactly 3 poll attempts, got %d", backend.attempts)
	}
}

func TestDeviceCodeFlowCanceledByContext(t *testing.T) {
	backend := &fakeDeviceCodeProvider{
		dc:        DeviceCodeResponse{DeviceCode: "dc", ExpiresIn: 60, IntervalSeconds: 0},
		succeedAt: 1000,
	}
	flow := NewDeviceCodeFlow("kiro", backend)
	ctx, cancel := context.WithCancel(context.Background())

	if _, err := flow.Start(ctx); err != nil {
		t.Fatal(err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := flow.Finish(ctx)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) || authErr.Kind != UserCanceled {
		t.Fatalf("expected UserCanceled, got %v", err)
	}
}

func TestParseIDTokenSubjectExtractsSub(t *testing.T) {
	// header.payload.signature, payload = {"sub":"user-42"} base64url-encoded
	token := "eyJhbGciOiJub25lIn0.eyJzdWIiOiJ1c2VyLTQyIn0.sig"
	sub, err := ParseIDTokenSubject(token)
	if err != nil {
		t.Fatalf("ParseIDTokenSubject: %v", err)
	}
	if sub != "user-42" {
		t.Fatalf("expected sub=user-42, got %q", sub)
	}
}

func TestParseIDTokenSubjectRejectsMalformed(t *testing.T) {
	if _, err := ParseIDTokenSubject("not-a-jwt"); err == nil {
		t.Fatal("expected error for malformed id_token")
	}
}

type fakeBootstrapFetcher struct {
	calls int
	creds BootstrapCredentials
}

func (f *fakeBootstrapFetcher) FetchBootstrap(ctx context.Context) (BootstrapCredentials, error) {
	f.calls++
	return f.creds, nil
}

func TestBootstrapFlowCachesFetchAcrossInstances(t *testing.T) {
	fetcher := &fakeBootstrapFetcher{creds: BootstrapCredentials{ClientID: "cid"}}
	build := func(creds BootstrapCredentials) Flow {
		return &fakeExchangerFlow{creds: creds}
	}

	flow1 := NewBootstrapFlow("qwen", fetcher, build)
	flow2 := NewBootstrapFlow("qwen", fetcher, build)

	if _, err := flow1.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := flow2.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected bootstrap fetch to be cached, got %d calls", fetcher.calls)
	}
}

type fakeExchangerFlow struct {
	creds BootstrapCredentials
}

func (f *fakeExchangerFlow) Start(ctx context.Context) (StartInfo, error) {
	return StartInfo{VerificationURL: f.creds.ClientID}, nil
}
func (f *fakeExchangerFlow) Finish(ctx context.Context) (Result, error) {
	return Result{AccessToken: f.creds.ClientID}, nil
}
