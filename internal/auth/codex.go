package auth

import (
	"golang.org/x/oauth2"

	"github.com/byokey/byokey/internal/oauth"
)

const (
	codexAuthURL  = "https://auth.openai.com/oauth/authorize"
	codexTokenURL = "https://auth.openai.com/oauth/token"
	codexClientID = "app_EMoamEEZ73f0CkXaXp7hrann"
)

func codexOAuth2Config() oauth2.Config {
	return oauth2.Config{
		ClientID: codexClientID,
		Endpoint: oauth2.Endpoint{AuthURL: codexAuthURL, TokenURL: codexTokenURL},
		Scopes:   []string{"openid", "profile", "email", "offline_access"},
	}
}

// NewCodexFlow builds the PKCE+loopback flow for ChatGPT Plus/Codex.
func NewCodexFlow(openBrowser func(string) error) *oauth.PKCELoopbackFlow {
	exchanger := mustExchanger("codex", codexOAuth2Config(), map[string]string{"id_token_add_organizations": "true"})
	return oauth.NewPKCELoopbackFlow("codex", exchanger, openBrowser)
}
