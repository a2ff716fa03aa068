package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/byokey/byokey/internal/oauth"
)

// oauth2Exchanger adapts a standard RFC 6749 authorization-code exchange
// (golang.org/x/oauth2) to oauth.TokenExchanger, for the providers whose
// token endpoint needs nothing provider-specific beyond PKCE: Claude, Codex,
// Gemini, Antigravity.
type oauth2Exchanger struct {
	provider   string
	baseConfig oauth2.Config
	extraAuth  map[string]string // e.g. Claude's custom scope/audience params
}

func newOAuth2Exchanger(provider string, cfg oauth2.Config, extraAuth map[string]string) *oauth2Exchanger {
	return &oauth2Exchanger{provider: provider, baseConfig: cfg, extraAuth: extraAuth}
}

func (e *oauth2Exchanger) AuthorizationURL(redirectURI, state, codeChallenge string) string {
	cfg := e.baseConfig
	cfg.RedirectURL = redirectURI
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}
	for k, v := range e.extraAuth {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return cfg.AuthCodeURL(state, opts...)
}

func (e *oauth2Exchanger) Exchange(ctx context.Context, redirectURI, code, codeVerifier string) (oauth.Result, error) {
	cfg := e.baseConfig
	cfg.RedirectURL = redirectURI
	token, err := cfg.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	if err != nil {
		return oauth.Result{}, oauth.NewAuthenticationError(oauth.UpstreamRejected, e.provider, err)
	}
	result := oauth.Result{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		result.ExpiresAt = &expiry
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		result.IDToken = idToken
	}
	return result, nil
}

func mustExchanger(provider string, cfg oauth2.Config, extraAuth map[string]string) *oauth2Exchanger {
	if cfg.ClientID == "" {
		panic(fmt.Sprintf("auth(%s): missing client id", provider))
	}
	return newOAuth2Exchanger(provider, cfg, extraAuth)
}

// Refresh exchanges a refresh token for a new access token via the standard
// RFC 6749 refresh grant, as a single attempt with no retry. A 4xx answer
// from the token endpoint (an *oauth2.RetrieveError) is an upstream
// rejection; a 5xx answer, or a failure before any answer arrives, is a
// NetworkError, which the auth manager treats as transient.
func (e *oauth2Exchanger) Refresh(ctx context.Context, refreshToken string) (oauth.Result, error) {
	cfg := e.baseConfig
	ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := ts.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < 500 {
			return oauth.Result{}, oauth.NewAuthenticationError(oauth.UpstreamRejected, e.provider, err)
		}
		return oauth.Result{}, oauth.NewAuthenticationError(oauth.NetworkError, e.provider, err)
	}

	result := oauth.Result{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if result.RefreshToken == "" {
		// Several providers (Google included) omit refresh_token from a
		// refresh response and expect the original to remain valid.
		result.RefreshToken = refreshToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		result.ExpiresAt = &expiry
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		result.IDToken = idToken
	}
	return result, nil
}
