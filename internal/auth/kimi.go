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
	kimiDeviceAuthURL = "https://www.kimi.com/oauth/device/code"
	kimiTokenURL      = "https://www.kimi.com/oauth/token"
	kimiClientID      = "kimi-cli"
)

type kimiDeviceCodeProvider struct {
	client *http.Client
}

func NewKimiFlow() *oauth.DeviceCodeFlow {
	return oauth.NewDeviceCodeFlow("kimi", &kimiDeviceCodeProvider{client: &http.Client{Timeout: 30 * time.Second}})
}

func (p *kimiDeviceCodeProvider) RequestDeviceCode(ctx context.Context) (oauth.DeviceCodeResponse, error) {
	body, _ := json.Marshal(map[string]string{"client_id": kimiClientID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, kimiDeviceAuthURL, bytes.NewReader(body))
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

func (p *kimiDeviceCodeProvider) PollToken(ctx context.Context, deviceCode string) (oauth.Result, bool, bool, error) {
	body, _ := json.Marshal(map[string]string{
		"client_id":   kimiClientID,
		"device_code": deviceCode,
		"grant_type":  "urn:ietf:params:oauth:grant-type:device_code",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, kimiTokenURL, bytes.NewReader(body))
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
		return oauth.Result{}, false, false, oauth.NewAuthenticationError(oauth.Timeout, "kimi", fmt.Errorf("expired_token"))
	default:
		return oauth.Result{}, false, false, oauth.NewAuthenticationError(oauth.UpstreamRejected, "kimi", fmt.Errorf("%s", tok.Error)).WithUpstream(tok.Error, "")
	}

	expiry := time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return oauth.Result{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    &expiry,
	}, true, false, nil
}
