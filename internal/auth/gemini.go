package auth

import (
	"golang.org/x/oauth2"

	"github.com/byokey/byokey/internal/oauth"
)

const (
	geminiAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	geminiTokenURL = "https://oauth2.googleapis.com/token"
	geminiClientID = "681255809395-oo8ft2oprdrnp9e3aqf6av3hmdib135j.apps.googleusercontent.com"
)

func geminiOAuth2Config() oauth2.Config {
	return oauth2.Config{
		ClientID: geminiClientID,
		Endpoint: oauth2.Endpoint{AuthURL: geminiAuthURL, TokenURL: geminiTokenURL},
		Scopes: []string{
			"https://www.googleapis.com/auth/cloud-platform",
			"https://www.googleapis.com/auth/userinfo.email",
			"openid",
		},
	}
}

// NewGeminiFlow builds the PKCE+loopback flow for Google Gemini.
func NewGeminiFlow(openBrowser func(string) error) *oauth.PKCELoopbackFlow {
	exchanger := mustExchanger("gemini", geminiOAuth2Config(), map[string]string{"access_type": "offline", "prompt": "consent"})
	return oauth.NewPKCELoopbackFlow("gemini", exchanger, openBrowser)
}
