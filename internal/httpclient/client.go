// Package httpclient implements the HTTPClient external collaborator spec.md
// treats as already provided: outbound requests carry a TLS client-hello
// fingerprint (so upstreams see a browser-shaped handshake rather than Go's
// default), honor a configured proxy with NO_PROXY bypass, and transparently
// decompress br/gzip/zstd bodies even when streaming.
package httpclient

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/imroc/req/v3"
	"github.com/klauspost/compress/zstd"

	"github.com/byokey/byokey/internal/config"
)

// Request is the HTTPClient call shape every executor builds against.
type Request struct {
	Method    string
	URL       string
	Header    http.Header
	Body      []byte
	Streaming bool // disables buffering; Response.Body must be read incrementally and closed by the caller
}

// Response is the HTTPClient call result. Body is always non-nil and must be closed.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// HTTPClient is the interface executors depend on, never the concrete client,
// matching spec.md's explicit non-goal treating "an HTTPClient with
// TLS-fingerprint impersonation capability" as an external collaborator.
type HTTPClient interface {
	Do(ctx context.Context, r *Request) (*Response, error)
}

// Client implements HTTPClient over github.com/imroc/req/v3, whose
// Impersonate* presets apply refraction-networking/utls client-hello
// fingerprints. One *req.Client is cached per resolved proxy URL, since
// building a new client per request would defeat TCP/TLS connection pooling.
type Client struct {
	mu      sync.RWMutex
	clients map[string]*req.Client
	cfg     *config.Config
}

// New builds a Client from the process config snapshot. cfg may be nil, in
// which case no proxy is used and Chrome impersonation is the default.
func New(cfg *config.Config) *Client {
	return &Client{clients: make(map[string]*req.Client), cfg: cfg}
}

// Do issues the request and returns a response whose Body decompresses
// br/gzip/zstd transparently. For non-streaming requests req's own
// EnableAutoDecompress already handles this; for streaming requests
// auto-read is disabled (so the dispatcher can pipe bytes as they arrive)
// and decompression is layered on manually based on Content-Encoding.
func (c *Client) Do(ctx context.Context, r *Request) (*Response, error) {
	cl := c.clientFor(r.URL)
	rr := cl.R().SetContext(ctx)
	for k, vs := range r.Header {
		for _, v := range vs {
			rr.SetHeader(k, v)
		}
	}
	if r.Body != nil {
		rr.SetBodyBytes(r.Body)
	}
	if r.Streaming {
		rr.DisableAutoReadResponse()
	}

	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodPost
	}
	resp, err := rr.Send(method, r.URL)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s %s: %w", method, r.URL, err)
	}

	body := io.ReadCloser(resp.Body)
	if r.Streaming {
		body = decompress(resp.Header.Get("Content-Encoding"), resp.Body)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *Client) clientFor(rawURL string) *req.Client {
	proxyURL := c.resolveProxy(rawURL)

	c.mu.RLock()
	cl, ok := c.clients[proxyURL]
	c.mu.RUnlock()
	if ok {
		return cl
	}

	cl = req.C().EnableAutoDecompress().SetTimeout(0).SetCommonRetryCount(0)
	switch strings.ToLower(c.impersonateFingerprint()) {
	case "firefox":
		cl = cl.ImpersonateFirefox()
	case "safari":
		cl = cl.ImpersonateSafari()
	case "edge":
		cl = cl.ImpersonateEdge()
	default:
		cl = cl.ImpersonateChrome()
	}
	if proxyURL != "" {
		cl.SetProxyURL(proxyURL)
	}

	c.mu.Lock()
	c.clients[proxyURL] = cl
	c.mu.Unlock()
	return cl
}

func (c *Client) impersonateFingerprint() string {
	if c.cfg != nil {
		return c.cfg.TLS.Impersonate
	}
	return ""
}

// resolveProxy applies NO_PROXY bypass on top of the configured global proxy
// URL. There is no per-auth proxy override here since BYOKEY's proxy_url is
// a single process-wide setting.
func (c *Client) resolveProxy(rawURL string) string {
	if c.cfg == nil || strings.TrimSpace(c.cfg.ProxyURL) == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return c.cfg.ProxyURL
	}
	if shouldBypassProxy(u.Hostname(), parseNoProxyList(noProxyEnvRaw())) {
		return ""
	}
	return c.cfg.ProxyURL
}

func noProxyEnvRaw() string {
	if v := strings.TrimSpace(os.Getenv("NO_PROXY")); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv("no_proxy"))
}

func parseNoProxyList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func shouldBypassProxy(host string, patterns []string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" || len(patterns) == 0 {
		return false
	}
	for _, p := range patterns {
		switch {
		case p == "*":
			return true
		case host == p:
			return true
		case strings.HasPrefix(p, ".") && strings.HasSuffix(host, p):
			return true
		case strings.HasPrefix(p, ".") && host == p[1:]:
			return true
		case !strings.HasPrefix(p, ".") && strings.HasSuffix(host, "."+p):
			return true
		}
	}
	return false
}

// decompress wraps body in a decoder for the given Content-Encoding, closing
// both the decoder and the underlying body on Close. Unknown or absent
// encodings pass the body through unchanged.
func decompress(encoding string, body io.ReadCloser) io.ReadCloser {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "br":
		return &wrappedReadCloser{Reader: brotli.NewReader(body), underlying: body}
	case "gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return body
		}
		return &wrappedReadCloser{Reader: gz, underlying: body, closer: gz}
	case "zstd":
		zr, err := zstd.NewReader(body)
		if err != nil {
			return body
		}
		return &wrappedReadCloser{Reader: zr, underlying: body, zstdCloser: zr}
	default:
		return body
	}
}

// wrappedReadCloser closes both the decompressor (when it exposes a Close
// method, as gzip and zstd do differently) and the underlying network body.
type wrappedReadCloser struct {
	io.Reader
	underlying io.ReadCloser
	closer     io.Closer // gzip.Reader
	zstdCloser *zstd.Decoder
}

func (w *wrappedReadCloser) Close() error {
	if w.zstdCloser != nil {
		w.zstdCloser.Close()
	}
	if w.closer != nil {
		_ = w.closer.Close()
	}
	return w.underlying.Close()
}
