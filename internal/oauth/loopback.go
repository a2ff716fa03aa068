package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// TokenExchanger performs the provider-specific authorization_code ->
// token-response exchange, once the loopback listener has captured a code.
type TokenExchanger interface {
	// AuthorizationURL builds the provider's authorization endpoint URL for
	// the given redirect_uri, state and PKCE challenge.
	AuthorizationURL(redirectURI, state, codeChallenge string) string
	// Exchange swaps an authorization code for tokens.
	Exchange(ctx context.Context, redirectURI, code, codeVerifier string) (Result, error)
}

// PKCELoopbackFlow is the PKCE authorization-code with local loopback
// variant, used by Claude, Codex, Gemini, Antigravity.
type PKCELoopbackFlow struct {
	Provider   string
	Exchanger  TokenExchanger
	OpenBrowser func(url string) error

	mu       sync.Mutex
	listener net.Listener
	verifier string
	state    string

	codeCh chan string
	errCh  chan error
	used   bool
}

// NewPKCELoopbackFlow constructs a flow for provider using exchanger. If
// openBrowser is nil, the caller is expected to read StartInfo.VerificationURL
// itself (e.g. a TUI prints it instead of auto-opening).
func NewPKCELoopbackFlow(provider string, exchanger TokenExchanger, openBrowser func(string) error) *PKCELoopbackFlow {
	return &PKCELoopbackFlow{Provider: provider, Exchanger: exchanger, OpenBrowser: openBrowser}
}

func (f *PKCELoopbackFlow) Start(ctx context.Context) (StartInfo, error) {
	verifier, err := GenerateVerifier()
	if err != nil {
		return StartInfo{}, NewAuthenticationError(MalformedResponse, f.Provider, err)
	}
	state, err := GenerateState()
	if err != nil {
		return StartInfo{}, NewAuthenticationError(MalformedResponse, f.Provider, err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return StartInfo{}, NewAuthenticationError(NetworkError, f.Provider, err)
	}

	f.mu.Lock()
	f.listener = listener
	f.verifier = verifier
	f.state = state
	f.codeCh = make(chan string, 1)
	f.errCh = make(chan error, 1)
	f.mu.Unlock()

	port := listener.Addr().(*net.TCPAddr).Port
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", port)
	challenge := ChallengeFromVerifier(verifier)
	authURL := f.Exchanger.AuthorizationURL(redirectURI, state, challenge)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", f.handleCallback)
	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && !strings.Contains(err.Error(), "use of closed network connection") {
			log.WithError(err).Debugf("oauth(%s): loopback server stopped", f.Provider)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	if f.OpenBrowser != nil {
		if err := f.OpenBrowser(authURL); err != nil {
			log.WithError(err).Warnf("oauth(%s): failed to open browser, print URL instead", f.Provider)
		}
	}

	return StartInfo{VerificationURL: authURL, ExpiresAt: time.Now().Add(10 * time.Minute)}, nil
}

func (f *PKCELoopbackFlow) handleCallback(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	alreadyUsed := f.used
	f.used = true
	f.mu.Unlock()

	if alreadyUsed {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("duplicate callback rejected"))
		return
	}

	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		f.errCh <- NewAuthenticationError(UpstreamRejected, f.Provider, fmt.Errorf("%s", errParam)).WithUpstream(errParam, q.Get("error_description"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Authorization failed, you may close this tab."))
		return
	}

	if q.Get("state") != f.state {
		f.errCh <- NewAuthenticationError(StateMismatch, f.Provider, fmt.Errorf("state mismatch"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("State mismatch, close this tab and retry."))
		return
	}

	code := q.Get("code")
	if code == "" {
		f.errCh <- NewAuthenticationError(MalformedResponse, f.Provider, fmt.Errorf("missing code param"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Missing authorization code."))
		return
	}

	f.codeCh <- code
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Authentication complete, you may close this tab."))
}

func (f *PKCELoopbackFlow) Finish(ctx context.Context) (Result, error) {
	defer func() {
		f.mu.Lock()
		if f.listener != nil {
			_ = f.listener.Close()
		}
		f.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return Result{}, NewAuthenticationError(UserCanceled, f.Provider, ctx.Err())
	case err := <-f.errCh:
		return Result{}, err
	case code := <-f.codeCh:
		port := f.listener.Addr().(*net.TCPAddr).Port
		redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", port)
		result, err := f.Exchanger.Exchange(ctx, redirectURI, code, f.verifier)
		if err != nil {
			return Result{}, err
		}
		return result, nil
	}
}

// ParseIDTokenSubject extracts the `sub` claim from an id_token without
// verifying its signature: the id token is never used as a bearer
// credential here, only to derive a stable account identifier.
func ParseIDTokenSubject(idToken string) (string, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("oauth: malformed id_token")
	}
	payload, err := base64URLDecodeJWTSegment(parts[1])
	if err != nil {
		return "", fmt.Errorf("oauth: decode id_token payload: %w", err)
	}
	var claims struct {
		Sub string `json:"sub"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("oauth: parse id_token claims: %w", err)
	}
	if claims.Sub == "" {
		return "", fmt.Errorf("oauth: id_token has no sub claim")
	}
	return claims.Sub, nil
}

func base64URLDecodeJWTSegment(seg string) ([]byte, error) {
	if m := len(seg) % 4; m != 0 {
		seg += strings.Repeat("=", 4-m)
	}
	return base64.URLEncoding.DecodeString(seg)
}
