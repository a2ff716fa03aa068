package auth

import (
	"golang.org/x/oauth2"

	"github.com/byokey/byokey/internal/oauth"
)

const (
	antigravityAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	antigravityTokenURL = "https://oauth2.googleapis.com/token"
	antigravityClientID = "antigravity-cli-client"
)

func antigravityOAuth2Config() oauth2.Config {
	return oauth2.Config{
		ClientID: antigravityClientID,
		Endpoint: oauth2.Endpoint{AuthURL: antigravityAuthURL, TokenURL: antigravityTokenURL},
		Scopes:   []string{"https://www.googleapis.com/auth/cloud-platform", "openid"},
	}
}

// NewAntigravityFlow builds the PKCE+loopback flow for Antigravity.
func NewAntigravityFlow(openBrowser func(string) error) *oauth.PKCELoopbackFlow {
	exchanger := mustExchanger("antigravity", antigravityOAuth2Config(), map[string]string{"access_type": "offline"})
	return oauth.NewPKCELoopbackFlow("antigravity", exchanger, openBrowser)
}
