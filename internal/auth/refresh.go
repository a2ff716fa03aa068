package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/byokey/byokey/internal/oauth"
	"github.com/byokey/byokey/internal/store"
)

// Refresher matches authmanager.Refresher structurally so this package never
// has to import internal/authmanager (that dependency runs the other way:
// authmanager and internal/executor depend on internal/auth's constructors,
// not vice versa).
type Refresher interface {
	Refresh(ctx context.Context, cred store.Credential) (store.Credential, error)
}

// oauth2Refresh is satisfied by oauth2Exchanger; pulled out as an interface
// so oauth2Refresher stays testable against a fake.
type oauth2Refresh interface {
	Refresh(ctx context.Context, refreshToken string) (oauth.Result, error)
}

// oauth2Refresher adapts one of the four PKCE+loopback providers' exchangers
// to Refresher, carrying forward the id token and any Extras already on the
// stored credential (the refresh grant never returns them again).
type oauth2Refresher struct {
	exchanger oauth2Refresh
}

func (r *oauth2Refresher) Refresh(ctx context.Context, cred store.Credential) (store.Credential, error) {
	if cred.RefreshToken == "" {
		return store.Credential{}, oauth.NewAuthenticationError(oauth.UpstreamRejected, "", fmt.Errorf("no refresh token on file"))
	}
	result, err := r.exchanger.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return store.Credential{}, err
	}
	out := cred
	out.AccessToken = result.AccessToken
	out.RefreshToken = result.RefreshToken
	out.ExpiresAt = result.ExpiresAt
	if result.IDToken != "" {
		out.IDToken = result.IDToken
	}
	return out, nil
}

// NewClaudeRefresher builds the Refresher for Claude Pro accounts.
func NewClaudeRefresher() Refresher {
	return &oauth2Refresher{mustExchanger("claude", claudeOAuth2Config(), nil)}
}

// NewCodexRefresher builds the Refresher for ChatGPT Plus/Codex accounts.
func NewCodexRefresher() Refresher {
	return &oauth2Refresher{mustExchanger("codex", codexOAuth2Config(), map[string]string{"id_token_add_organizations": "true"})}
}

// NewGeminiRefresher builds the Refresher for Google Gemini accounts.
func NewGeminiRefresher() Refresher {
	return &oauth2Refresher{mustExchanger("gemini", geminiOAuth2Config(), map[string]string{"access_type": "offline", "prompt": "consent"})}
}

// NewAntigravityRefresher builds the Refresher for Antigravity accounts.
func NewAntigravityRefresher() Refresher {
	return &oauth2Refresher{mustExchanger("antigravity", antigravityOAuth2Config(), map[string]string{"access_type": "offline"})}
}

// deviceRefreshProvider is the minimal per-provider wiring a refresh_token
// grant needs: where to POST and under what client id. Kiro, Kimi, Qwen and
// iFlow all accept this same urn:ietf:params:oauth:grant-type device-code
// token endpoint shape for both the initial exchange and a refresh.
type deviceRefreshProvider struct {
	provider string
	tokenURL string
	clientID string
	client   *http.Client
}

// Refresh performs a standard refresh_token grant against the provider's
// token endpoint, the same endpoint internal/auth/<provider>.go's PollToken
// polls during login.
func (p *deviceRefreshProvider) Refresh(ctx context.Context, cred store.Credential) (store.Credential, error) {
	if cred.RefreshToken == "" {
		return store.Credential{}, oauth.NewAuthenticationError(oauth.UpstreamRejected, p.provider, fmt.Errorf("no refresh token on file"))
	}

	body, _ := json.Marshal(map[string]string{
		"client_id":     p.clientID,
		"refresh_token": cred.RefreshToken,
		"grant_type":    "refresh_token",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, bytes.NewReader(body))
	if err != nil {
		return store.Credential{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return store.Credential{}, oauth.NewAuthenticationError(oauth.NetworkError, p.provider, err)
	}
	defer resp.Body.Close()

	var tok struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		Region       string `json:"region"`
		Error        string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return store.Credential{}, oauth.NewAuthenticationError(oauth.MalformedResponse, p.provider, err)
	}
	if tok.Error != "" {
		return store.Credential{}, oauth.NewAuthenticationError(oauth.UpstreamRejected, p.provider, fmt.Errorf("%s", tok.Error)).WithUpstream(tok.Error, "")
	}

	out := cred
	out.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		out.RefreshToken = tok.RefreshToken
	}
	if tok.ExpiresIn > 0 {
		expiry := time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
		out.ExpiresAt = &expiry
	}
	if tok.Region != "" {
		if out.Extras == nil {
			out.Extras = map[string]string{}
		}
		out.Extras["region"] = tok.Region
	}
	return out, nil
}

// NewKiroRefresher builds the Refresher for AWS Kiro accounts.
func NewKiroRefresher() Refresher {
	return &deviceRefreshProvider{provider: "kiro", tokenURL: kiroTokenURL, clientID: kiroClientID, client: &http.Client{Timeout: 30 * time.Second}}
}

// NewKimiRefresher builds the Refresher for Kimi accounts.
func NewKimiRefresher() Refresher {
	return &deviceRefreshProvider{provider: "kimi", tokenURL: kimiTokenURL, clientID: kimiClientID, client: &http.Client{Timeout: 30 * time.Second}}
}

// NewQwenRefresher builds the Refresher for Qwen Code accounts.
func NewQwenRefresher() Refresher {
	return &deviceRefreshProvider{provider: "qwen", tokenURL: qwenTokenURL, clientID: qwenClientID, client: &http.Client{Timeout: 30 * time.Second}}
}

// copilotRefresher re-swaps the GitHub access token stashed in
// Extras["github_token"] for a fresh Copilot API token, the same request
// copilotDeviceCodeProvider.PollToken makes on first login. GitHub's
// device-flow user token has no refresh_token of its own and does not
// expire under normal use, so there is nothing to refresh upstream of it;
// if GitHub has revoked it the swap itself comes back UpstreamRejected and
// the account falls back to NotAuthenticated.
type copilotRefresher struct {
	provider *copilotDeviceCodeProvider
}

// NewCopilotRefresher builds the Refresher for GitHub Copilot accounts.
func NewCopilotRefresher() Refresher {
	return &copilotRefresher{provider: &copilotDeviceCodeProvider{client: &http.Client{Timeout: 30 * time.Second}}}
}

func (r *copilotRefresher) Refresh(ctx context.Context, cred store.Credential) (store.Credential, error) {
	githubToken := cred.Extras["github_token"]
	if githubToken == "" {
		return store.Credential{}, oauth.NewAuthenticationError(oauth.UpstreamRejected, "copilot", fmt.Errorf("no github token on file to re-swap"))
	}
	apiBase, copilotToken, expiresAt, err := r.provider.swapForCopilotToken(ctx, githubToken)
	if err != nil {
		return store.Credential{}, err
	}
	out := cred
	out.AccessToken = copilotToken
	out.ExpiresAt = &expiresAt
	if out.Extras == nil {
		out.Extras = map[string]string{}
	}
	out.Extras["endpoint_hint"] = apiBase
	return out, nil
}

// NewIFlowRefresher builds the Refresher for iFlow accounts. iFlow's token
// endpoint hands back a refresh_token alongside the access token
// (internal/auth/iflow.go's Exchange), so the same refresh_token grant
// applies even though the initial login is an out-of-band paste rather than
// a device code.
func NewIFlowRefresher() Refresher {
	return &deviceRefreshProvider{provider: "iflow", tokenURL: iflowTokenURL, clientID: iflowClientID, client: &http.Client{Timeout: 30 * time.Second}}
}
