package auth

import (
	"golang.org/x/oauth2"

	"github.com/byokey/byokey/internal/oauth"
)

const (
	claudeAuthURL  = "https://claude.ai/oauth/authorize"
	claudeTokenURL = "https://console.anthropic.com/v1/oauth/token"
	claudeClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
)

func claudeOAuth2Config() oauth2.Config {
	return oauth2.Config{
		ClientID: claudeClientID,
		Endpoint: oauth2.Endpoint{AuthURL: claudeAuthURL, TokenURL: claudeTokenURL},
		Scopes:   []string{"org:create_api_key", "user:profile", "user:inference"},
	}
}

// NewClaudeFlow builds the PKCE+loopback flow for Claude Pro.
func NewClaudeFlow(openBrowser func(string) error) *oauth.PKCELoopbackFlow {
	exchanger := mustExchanger("claude", claudeOAuth2Config(), nil)
	return oauth.NewPKCELoopbackFlow("claude", exchanger, openBrowser)
}
