package executor

import (
	"context"
	"fmt"

	"github.com/byokey/byokey/internal/byokeyerr"
	"github.com/byokey/byokey/internal/config"
	"github.com/byokey/byokey/internal/httpclient"
	"github.com/byokey/byokey/internal/registry"
	"github.com/byokey/byokey/internal/store"
)

// stubExecutor satisfies Executor for providers whose OAuth flow and model
// catalog exist (internal/auth, internal/registry) but whose upstream wire
// shape has no grounding in any retrieved source — Antigravity, Qwen, Kimi
// and iFlow. Execute fails loud rather than guessing at an unverified
// request/response contract; FetchModels still serves the static catalog so
// /v1/models and routing stay usable ahead of a real implementation.
type stubExecutor struct {
	id store.ProviderID
}

func newStubExecutor(id store.ProviderID) *stubExecutor { return &stubExecutor{id: id} }

// NewAntigravityExecutor builds the placeholder Google Antigravity executor.
func NewAntigravityExecutor() Executor { return newStubExecutor(store.Antigravity) }

// NewQwenExecutor builds the placeholder Alibaba Qwen executor.
func NewQwenExecutor() Executor { return newStubExecutor(store.Qwen) }

// NewKimiExecutor builds the placeholder Moonshot Kimi executor.
func NewKimiExecutor() Executor { return newStubExecutor(store.Kimi) }

// NewIFlowExecutor builds the placeholder iFlow executor.
func NewIFlowExecutor() Executor { return newStubExecutor(store.IFlow) }

func (e *stubExecutor) Identifier() store.ProviderID { return e.id }

func (e *stubExecutor) Execute(ctx context.Context, req Request, cred store.Credential, cfg config.ProviderConfig, client httpclient.HTTPClient) (Result, error) {
	return Result{}, byokeyerr.Internal("", fmt.Errorf("%s executor not implemented", e.id))
}

func (e *stubExecutor) FetchModels(ctx context.Context, cred store.Credential, client httpclient.HTTPClient) ([]registry.ModelInfo, error) {
	return registry.GenerateProviderAliases(e.id, registry.StaticCatalog[e.id]), nil
}
