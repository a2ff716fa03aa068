package oauth

import (
	"context"
	"sync"
)

// BootstrapCredentials is the client id/secret bundle some providers require
// fetching from a content-delivery endpoint before any login ceremony can
// start's "bootstrap-then-exchange" variant.
type BootstrapCredentials struct {
	ClientID     string
	ClientSecret string
	Extras       map[string]string
}

// BootstrapFetcher fetches the bundle. Implementations are provider-specific
// HTTP calls; BootstrapFlow caches the result in-process for the life of the
// binary rather than refetching per login attempt.
type BootstrapFetcher interface {
	FetchBootstrap(ctx context.Context) (BootstrapCredentials, error)
}

// FlowFactory builds the underlying Flow once bootstrap credentials are known.
type FlowFactory func(creds BootstrapCredentials) Flow

// bootstrapCache holds one fetched bundle per fetcher identity, shared across
// every BootstrapFlow instance wrapping the same fetcher within this process.
var bootstrapCache sync.Map // map[BootstrapFetcher]BootstrapCredentials

// BootstrapFlow wraps an inner Flow variant behind a one-time bootstrap
// fetch. The inner flow is only constructed once the bundle is available.
type BootstrapFlow struct {
	Provider string
	Fetcher  BootstrapFetcher
	Build    FlowFactory

	inner Flow
}

func NewBootstrapFlow(provider string, fetcher BootstrapFetcher, build FlowFactory) *BootstrapFlow {
	return &BootstrapFlow{Provider: provider, Fetcher: fetcher, Build: build}
}

func (f *BootstrapFlow) Start(ctx context.Context) (StartInfo, error) {
	creds, err := f.fetchCached(ctx)
	if err != nil {
		return StartInfo{}, err
	}
	f.inner = f.Build(creds)
	return f.inner.Start(ctx)
}

func (f *BootstrapFlow) fetchCached(ctx context.Context) (BootstrapCredentials, error) {
	if cached, ok := bootstrapCache.Load(f.Fetcher); ok {
		return cached.(BootstrapCredentials), nil
	}
	creds, err := f.Fetcher.FetchBootstrap(ctx)
	if err != nil {
		return BootstrapCredentials{}, NewAuthenticationError(NetworkError, f.Provider, err)
	}
	bootstrapCache.Store(f.Fetcher, creds)
	return creds, nil
}

func (f *BootstrapFlow) Finish(ctx context.Context) (Result, error) {
	if f.inner == nil {
		return Result{}, NewAuthenticationError(MalformedResponse, f.Provider, nil)
	}
	return f.inner.Finish(ctx)
}
