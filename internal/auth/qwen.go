package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/byokey/byokey/internal/oauth"
)

const (
	qwenDeviceAuthURL = "https://chat.qwen.ai/api/v1/oauth2/device/code"
	qwenTokenURL      = "https://chat.qwen.ai/api/v1/oauth2/token"
	qwenClientID      = "qwen-code"
)

// qwenHybridProvider implements oauth.HybridDeviceCodeProvider: the device
// code carries a PKCE challenge and the token exchange verifies both,
//
type qwenHybridProvider struct {
	client *http.Client
}

func NewQwenFlow() *oauth.DeviceCodePKCEFlow {
	return oauth.NewDeviceCodePKCEFlow("qwen", &qwenHybridProvider{client: &http.Client{Timeout: 30 * time.Second}})
}

func (p *qwenHybridProvider) RequestDeviceCode(ctx context.Context, codeChallenge string) (oauth.DeviceCodeResponse, error) {
	body, _ := json.Marshal(map[string]string{
		"client_id":             qwenClientID,
		"code_challenge":        codeChallenge,
		"code_challenge_method": "S256",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, qwenDeviceAuthURL, bytes.NewReader(body))
	if err != nil {
		return oauth.DeviceCodeResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
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

func (p *qwenHybridProvider) PollToken(ctx context.Context, deviceCode, codeVerifier string) (oauth.Result, bool, bool, error) {
	body, _ := json.Marshal(map[string]string{
		"client_id":     qwenClientID,
		"device_code":   deviceCode,
		"code_verifier": codeVerifier,
		"grant_type":    "urn:ietf:params:oauth:grant-type:device_code",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, qwenTokenURL, bytes.NewReader(body))
	if err != nil {
		return oauth.Result{}, false, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return oauth.Result{}, false, false, err
	}
	defer resp.Body.Close()

	var tok struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		Error        string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return oauth.Result{}, false, false, err
	}
	switch tok.Error {
	case "":
	case "authorization_pending":
		return oauth.Result{}, false, false, nil
	case "slow_down":
		return oauth.Result{}, false, true, nil
	case "expired_token":
		return oauth.Result{}, false, false, oauth.NewAuthenticationError(oauth.Timeout, "qwen", fmt.Errorf("expired_token"))
	default:
		return oauth.Result{}, false, false, oauth.NewAuthenticationError(oauth.UpstreamRejected, "qwen", fmt.Errorf("%s", tok.Error)).WithUpstream(tok.Error, "")
	}

	expiry := time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return oauth.Result{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    &expiry,
	}, true, false, nil
}
