package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/byokey/byokey/internal/oauth"
	"github.com/byokey/byokey/internal/store"
)

type fakeOAuth2Refresh struct {
	result oauth.Result
	err    error
	called string
}

func (f *fakeOAuth2Refresh) Refresh(ctx context.Context, refreshToken string) (oauth.Result, error) {
	f.called = refreshToken
	return f.result, f.err
}

func TestOauth2RefresherRequiresStoredRefreshToken(t *testing.T) {
	fake := &fakeOAuth2Refresh{}
	r := &oauth2Refresher{exchanger: fake}
	if _, err := r.Refresh(context.Background(), store.Credential{Variant: store.VariantOAuthToken}); err == nil {
		t.Fatal("expected an error when no refresh token is stored")
	}
	if fake.called != "" {
		t.Fatal("exchanger should not be called without a stored refresh token")
	}
}

func TestOauth2RefresherMapsResultOntoCredential(t *testing.T) {
	expiry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakeOAuth2Refresh{result: oauth.Result{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		ExpiresAt:    &expiry,
		IDToken:      "new-id-token",
	}}
	r := &oauth2Refresher{exchanger: fake}

	in := store.Credential{Variant: store.VariantOAuthToken, RefreshToken: "old-refresh", IDToken: "old-id-token"}
	out, err := r.Refresh(context.Background(), in)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if fake.called != "old-refresh" {
		t.Fatalf("expected exchanger to be called with the stored refresh token, got %q", fake.called)
	}
	if out.AccessToken != "new-access" || out.RefreshToken != "new-refresh" || out.IDToken != "new-id-token" {
		t.Fatalf("unexpected mapped credential: %+v", out)
	}
	if out.ExpiresAt == nil || !out.ExpiresAt.Equal(expiry) {
		t.Fatalf("expected expiry to carry over, got %v", out.ExpiresAt)
	}
}

func TestOauth2RefresherPropagatesExchangerError(t *testing.T) {
	wantErr := oauth.NewAuthenticationError(oauth.UpstreamRejected, "claude", errors.New("invalid_grant"))
	fake := &fakeOAuth2Refresh{err: wantErr}
	r := &oauth2Refresher{exchanger: fake}

	_, err := r.Refresh(context.Background(), store.Credential{RefreshToken: "rt"})
	var authErr *oauth.AuthenticationError
	if !errors.As(err, &authErr) || authErr.Kind != oauth.UpstreamRejected {
		t.Fatalf("expected UpstreamRejected to propagate, got %v", err)
	}
}

func TestDeviceRefreshProviderRequiresStoredRefreshToken(t *testing.T) {
	p := &deviceRefreshProvider{provider: "kiro", tokenURL: "http://unused.invalid", clientID: "kiro-cli", client: http.DefaultClient}
	if _, err := p.Refresh(context.Background(), store.Credential{}); err == nil {
		t.Fatal("expected an error when no refresh token is stored")
	}
}

func TestDeviceRefreshProviderRefreshSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-at","refresh_token":"new-rt","expires_in":3600,"region":"us-east-1"}`))
	}))
	defer server.Close()

	p := &deviceRefreshProvider{provider: "kiro", tokenURL: server.URL, clientID: "kiro-cli", client: server.Client()}
	out, err := p.Refresh(context.Background(), store.Credential{RefreshToken: "old-rt"})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if out.AccessToken != "new-at" || out.RefreshToken != "new-rt" {
		t.Fatalf("unexpected credential: %+v", out)
	}
	if out.ExpiresAt == nil || out.ExpiresAt.Before(time.Now()) {
		t.Fatalf("expected a future expiry, got %v", out.ExpiresAt)
	}
	if out.Extras["region"] != "us-east-1" {
		t.Fatalf("expected region extra to carry through, got %+v", out.Extras)
	}
}

func TestDeviceRefreshProviderRefreshKeepsOldRefreshTokenWhenOmitted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"new-at","expires_in":60}`))
	}))
	defer server.Close()

	p := &deviceRefreshProvider{provider: "kimi", tokenURL: server.URL, clientID: "kimi-cli", client: server.Client()}
	out, err := p.Refresh(context.Background(), store.Credential{RefreshToken: "keep-me"})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if out.RefreshToken != "keep-me" {
		t.Fatalf("expected the stored refresh token to survive, got %q", out.RefreshToken)
	}
}

func TestDeviceRefreshProviderRefreshUpstreamRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	p := &deviceRefreshProvider{provider: "qwen", tokenURL: server.URL, clientID: "qwen-code", client: server.Client()}
	_, err := p.Refresh(context.Background(), store.Credential{RefreshToken: "rt"})
	var authErr *oauth.AuthenticationError
	if !errors.As(err, &authErr) || authErr.Kind != oauth.UpstreamRejected {
		t.Fatalf("expected UpstreamRejected, got %v", err)
	}
}

func TestDeviceRefreshProviderRefreshMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	p := &deviceRefreshProvider{provider: "iflow", tokenURL: server.URL, clientID: "iflow-cli", client: server.Client()}
	_, err := p.Refresh(context.Background(), store.Credential{RefreshToken: "rt"})
	var authErr *oauth.AuthenticationError
	if !errors.As(err, &authErr) || authErr.Kind != oauth.MalformedResponse {
		t.Fatalf("expected MalformedResponse, got %v", err)
	}
}

func TestCopilotRefresherRequiresStoredGitHubToken(t *testing.T) {
	r := &copilotRefresher{provider: &copilotDeviceCodeProvider{client: http.DefaultClient}}
	_, err := r.Refresh(context.Background(), store.Credential{Extras: map[string]string{}})
	var authErr *oauth.AuthenticationError
	if !errors.As(err, &authErr) || authErr.Kind != oauth.UpstreamRejected {
		t.Fatalf("expected UpstreamRejected without a stored github token, got %v", err)
	}
}

func TestRefresherConstructorsProduceNonNilRefreshers(t *testing.T) {
	constructors := []func() Refresher{
		NewClaudeRefresher, NewCodexRefresher, NewGeminiRefresher, NewAntigravityRefresher,
		NewCopilotRefresher, NewKiroRefresher, NewKimiRefresher, NewQwenRefresher, NewIFlowRefresher,
	}
	for _, ctor := range constructors {
		if r := ctor(); r == nil {
			t.Fatal("expected a non-nil Refresher")
		}
	}
}
