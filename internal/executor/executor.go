// Package executor implements the provider Executors : one
// variant per upstream, each knowing its own endpoint construction, header
// scheme, and payload rules, behind a single capability interface so the
// dispatcher never branches on provider identity.
package executor

import (
	"context"
	"io"

	"github.com/byokey/byokey/internal/config"
	"github.com/byokey/byokey/internal/httpclient"
	"github.com/byokey/byokey/internal/registry"
	"github.com/byokey/byokey/internal/store"
	"github.com/byokey/byokey/internal/translator"
)

// Request is an already-translated upstream request body ( tep
// "apply payload rules"), carrying the canonical upstream model the
// registry resolved and the dialect the body is encoded in.
type Request struct {
	Model     string
	Dialect   translator.Dialect
	Body      []byte
	Streaming bool
}

// Result carries a 2xx upstream response back to the dispatcher, tagged
// with the dialect the body/stream is encoded in ("wrapped with the
// provider's dialect tag", ) so the dispatcher's translating
// adapter knows which parser to use. Exactly one of Body/Stream is set,
// matching Request.Streaming.
type Result struct {
	Dialect translator.Dialect
	Body    []byte
	Stream  io.ReadCloser
}

// Executor is the capability-set interface 
type Executor interface {
	// Identifier returns the provider id this executor serves.
	Identifier() store.ProviderID
	// Execute sends req upstream using cred for authentication and cfg's
	// payload rules, returning CredentialExpired on a token-expiry
	// response so the dispatcher can refresh and retry once.
	Execute(ctx context.Context, req Request, cred store.Credential, cfg config.ProviderConfig, client httpclient.HTTPClient) (Result, error)
	// FetchModels lists the live models available to cred, satisfying
	// registry.ProviderModelSource once bound to a credential (see ModelSource).
	FetchModels(ctx context.Context, cred store.Credential, client httpclient.HTTPClient) ([]registry.ModelInfo, error)
}

// ModelSource adapts an Executor to registry.ProviderModelSource by binding
// it to a live HTTP client and a credential-acquisition callback (normally
// authmanager.Manager.Acquire against the provider's Active selector), since
// the registry's interface takes no arguments beyond ctx.
type ModelSource struct {
	Exec    Executor
	Client  httpclient.HTTPClient
	Acquire func(ctx context.Context) (store.Credential, error)
}

// FetchModels implements registry.ProviderModelSource.
func (s *ModelSource) FetchModels(ctx context.Context) ([]registry.ModelInfo, error) {
	cred, err := s.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return s.Exec.FetchModels(ctx, cred, s.Client)
}
