package executor

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/byokey/byokey/internal/byokeyerr"
	"github.com/byokey/byokey/internal/httpclient"
	"github.com/byokey/byokey/internal/store"
	"github.com/byokey/byokey/internal/translator"
)

const bodyExcerptLimit = 2048

// isTokenExpired detects token expiry: a bare 401 always counts; a 403
// only counts when the body names expired_token, distinguishing it from a
// permissions-scope 403.
func isTokenExpired(status int, body []byte) bool {
	if status == http.StatusUnauthorized {
		return true
	}
	if status == http.StatusForbidden {
		return bytes.Contains(body, []byte("expired_token"))
	}
	return false
}

func excerpt(body []byte) string {
	if len(body) > bodyExcerptLimit {
		body = body[:bodyExcerptLimit]
	}
	return string(body)
}

// send executes req against an upstream, classifying the response per the
// shared executor contract: a token-expiry status becomes
// CredentialExpired for the dispatcher's single refresh-and-retry; any
// other non-2xx becomes a byokeyerr.UpstreamError carrying the upstream
// status and a body excerpt; a 2xx is returned as a Result tagged with
// dialect, buffered for non-streaming calls and left open for streaming
// ones (the caller must Close it).
func send(ctx context.Context, client httpclient.HTTPClient, provider store.ProviderID, dialect translator.Dialect, r *httpclient.Request) (Result, error) {
	resp, err := client.Do(ctx, r)
	if err != nil {
		return Result{}, byokeyerr.UpstreamTimeout(string(provider), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if isTokenExpired(resp.StatusCode, data) {
			return Result{}, &CredentialExpired{Provider: provider, Status: resp.StatusCode}
		}
		return Result{}, byokeyerr.UpstreamError(string(provider), resp.StatusCode, excerpt(data))
	}

	if r.Streaming {
		return Result{Dialect: dialect, Stream: resp.Body}, nil
	}
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return Result{}, byokeyerr.Internal("", err)
	}
	return Result{Dialect: dialect, Body: data}, nil
}

// bearerHeader builds a standard "Authorization: Bearer <token>" header set,
// the default scheme every executor uses unless its provider config names a
// provider-specific override (Anthropic api_key, Copilot, Gemini api_key).
func bearerHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	h.Set("Content-Type", "application/json")
	return h
}

func tokenFromCredential(cred store.Credential) string {
	if cred.Variant == store.VariantAPIKey {
		return cred.APIKey
	}
	return cred.AccessToken
}
