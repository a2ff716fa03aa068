package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/byokey/byokey/internal/oauth"
)

const (
	githubClientID        = "Iv1.b507a08c87ecfe98"
	githubDeviceCodeURL   = "https://github.com/login/device/code"
	githubAccessTokenURL  = "https://github.com/login/oauth/access_token"
	githubUserURL         = "https://api.github.com/user"
	copilotTokenSwapURL   = "https://api.github.com/copilot_internal/v2/token"
	githubAppScopes       = "read:user"
)

// copilotDeviceCodeProvider implements oauth.DeviceCodeProvider for GitHub
// Copilot's two-hop flow: GitHub device code -> GitHub access token ->
// Copilot endpoint token, grounded on
// internal/auth/copilot/auth.go's GetDeviceCode/PollAccessToken/GetCopilotToken sequence.
type copilotDeviceCodeProvider struct {
	client *http.Client
}

// NewCopilotFlow builds the device-code flow for GitHub Copilot.
func NewCopilotFlow() *oauth.DeviceCodeFlow {
	return oauth.NewDeviceCodeFlow("copilot", &copilotDeviceCodeProvider{
		client: &http.Client{Timeout: 30 * time.Second},
	})
}

func (p *copilotDeviceCodeProvider) RequestDeviceCode(ctx context.Context) (oauth.DeviceCodeResponse, error) {
	body, _ := json.Marshal(map[string]string{"client_id": githubClientID, "scope": githubAppScopes})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, githubDeviceCodeURL, bytes.NewReader(body))
	if err != nil {
		return oauth.DeviceCodeResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return oauth.DeviceCodeResponse{}, err
	}
	defer resp.Body.Close()

	var dc struct {
		DeviceCode      string `json:"device_code"`
		UserCode        string `json:"user_code"`
		VerificationURI string `json:"verification_uri"`
		ExpiresIn       int    `json:"expires_in"`
		Interval        int    `json:"interval"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&dc); err != nil {
		return oauth.DeviceCodeResponse{}, err
	}
	return oauth.DeviceCodeResponse{
		DeviceCode:      dc.DeviceCode,
		UserCode:        dc.UserCode,
		VerificationURI: dc.VerificationURI,
		ExpiresIn:       dc.ExpiresIn,
		IntervalSeconds: dc.Interval,
	}, nil
}

func (p *copilotDeviceCodeProvider) PollToken(ctx context.Context, deviceCode string) (oauth.Result, bool, bool, error) {
	body, _ := json.Marshal(map[string]string{
		"client_id":   githubClientID,
		"device_code": deviceCode,
		"grant_type":  "urn:ietf:params:oauth:grant-type:device_code",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, githubAccessTokenURL, bytes.NewReader(body))
	if err != nil {
		return oauth.Result{}, false, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return oauth.Result{}, false, false, err
	}
	defer resp.Body.Close()

	var tok struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return oauth.Result{}, false, false, err
	}

	switch tok.Error {
	case "":
		// fall through to success path below
	case "authorization_pending":
		return oauth.Result{}, false, false, nil
	case "slow_down":
		return oauth.Result{}, false, true, nil
	case "access_denied":
		return oauth.Result{}, false, false, oauth.NewAuthenticationError(oauth.UpstreamRejected, "copilot", fmt.Errorf("access_denied")).WithUpstream(tok.Error, "")
	case "expired_token":
		return oauth.Result{}, false, false, oauth.NewAuthenticationError(oauth.Timeout, "copilot", fmt.Errorf("expired_token"))
	default:
		return oauth.Result{}, false, false, oauth.NewAuthenticationError(oauth.UpstreamRejected, "copilot", fmt.Errorf("%s", tok.Error)).WithUpstream(tok.Error, "")
	}

	apiBase, copilotToken, expiresAt, err := p.swapForCopilotToken(ctx, tok.AccessToken)
	if err != nil {
		return oauth.Result{}, false, false, err
	}
	login, err := p.fetchGitHubLogin(ctx, tok.AccessToken)
	if err != nil {
		return oauth.Result{}, false, false, err
	}

	return oauth.Result{
		AccessToken: copilotToken,
		ExpiresAt:   &expiresAt,
		Extras: map[string]string{
			"endpoint_hint": apiBase,
			"github_token":  tok.AccessToken,
			"github_login":  login,
		},
	}, true, false, nil
}

// swapForCopilotToken trades the long-lived GitHub access token for a
// short-lived Copilot API token plus the api base url to call it against.
// The GitHub token itself is kept (Extras["github_token"]) so
// copilotRefresher can redo this swap once the Copilot token expires,
// without ever asking the user to log in again.
func (p *copilotDeviceCodeProvider) swapForCopilotToken(ctx context.Context, githubToken string) (apiBase, token string, expiresAt time.Time, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, copilotTokenSwapURL, nil)
	if err != nil {
		return "", "", time.Time{}, err
	}
	req.Header.Set("Authorization", "token "+githubToken)
	resp, err := p.client.Do(req)
	if err != nil {
		return "", "", time.Time{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", "", time.Time{}, oauth.NewAuthenticationError(oauth.UpstreamRejected, "copilot", fmt.Errorf("status %d", resp.StatusCode)).WithUpstream(fmt.Sprint(resp.StatusCode), string(data))
	}
	var ct struct {
		Token     string `json:"token"`
		ExpiresAt int64  `json:"expires_at"`
		Endpoints struct {
			API string `json:"api"`
		} `json:"endpoints"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ct); err != nil {
		return "", "", time.Time{}, oauth.NewAuthenticationError(oauth.MalformedResponse, "copilot", err)
	}
	return ct.Endpoints.API, ct.Token, time.Unix(ct.ExpiresAt, 0), nil
}

func (p *copilotDeviceCodeProvider) fetchGitHubLogin(ctx context.Context, githubToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, githubUserURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "token "+githubToken)
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var user struct {
		Login string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", err
	}
	return user.Login, nil
}
