// Package auth wires each provider's token endpoints, client ids, and
// account-identity derivation into the oauth package's Flow variants. Each
// file here is one provider; internal/authmanager and
// internal/executor depend on this package, never the reverse.
package auth

import (
	"crypto/sha256"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/byokey/byokey/internal/oauth"
)

// DeriveAccountID implements the account id derivation order: prefer
// the id_token's `sub` claim, then a hash of the refresh-token prefix, then a
// random fallback with a "Account <short-random>" label.
func DeriveAccountID(result oauth.Result) (accountID, label string) {
	if result.IDToken != "" {
		if sub, err := oauth.ParseIDTokenSubject(result.IDToken); err == nil && sub != "" {
			return sub, ""
		}
	}
	if result.RefreshToken != "" {
		return hashRefreshTokenPrefix(result.RefreshToken), ""
	}
	id, err := randomShortID()
	if err != nil {
		id = "unknown"
	}
	return id, fmt.Sprintf("Account %s", id)
}

func hashRefreshTokenPrefix(refreshToken string) string {
	prefixLen := 16
	if len(refreshToken) < prefixLen {
		prefixLen = len(refreshToken)
	}
	sum := sha256.Sum256([]byte(refreshToken[:prefixLen]))
	return hex.EncodeToString(sum[:])[:16]
}

func randomShortID() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// CopilotAccountID uses the GitHub /user endpoint's login field directly,
//'s Copilot-specific rule.
func CopilotAccountID(githubLogin string) (accountID, label string) {
	return githubLogin, ""
}
