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
	iflowAuthorizeURL = "https://iflow.cn/oauth/authorize"
	iflowTokenURL     = "https://iflow.cn/oauth/token"
	iflowClientID     = "iflow-cli"
)

// iflowExchanger implements oauth.OOBExchanger: the browser shows a code the
// user copies back into BYOKEY ( "authorization-code with
// out-of-band paste").
type iflowExchanger struct {
	client *http.Client
}

func NewIFlowFlow() *oauth.OOBPasteFlow {
	return oauth.NewOOBPasteFlow("iflow", &iflowExchanger{client: &http.Client{Timeout: 30 * time.Second}})
}

func (e *iflowExchanger) AuthorizationURL() string {
	return iflowAuthorizeURL + "?client_id=" + iflowClientID + "&response_type=code"
}

func (e *iflowExchanger) Exchange(ctx context.Context, pastedCode string) (oauth.Result, error) {
	body, _ := json.Marshal(map[string]string{
		"client_id":  iflowClientID,
		"code":       pastedCode,
		"grant_type": "authorization_code",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, iflowTokenURL, bytes.NewReader(body))
	if err != nil {
		return oauth.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		return oauth.Result{}, oauth.NewAuthenticationError(oauth.NetworkError, "iflow", err)
	}
	defer resp.Body.Close()

	var tok struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		Error        string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return oauth.Result{}, oauth.NewAuthenticationError(oauth.MalformedResponse, "iflow", err)
	}
	if tok.Error != "" {
		return oauth.Result{}, oauth.NewAuthenticationError(oauth.UpstreamRejected, "iflow", fmt.Errorf("%s", tok.Error)).WithUpstream(tok.Error, "")
	}

	expiry := time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return oauth.Result{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    &expiry,
	}, nil
}
