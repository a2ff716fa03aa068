// Package cmd implements BYOKEY's CLI surface (§6): the `byokey` binary's
// serve/login/logout/status/amp subcommands, sharing one bootstrap Stack
// built from the on-disk config the same way every subcommand needs it.
package cmd

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/byokey/byokey/internal/auth"
	"github.com/byokey/byokey/internal/authmanager"
	"github.com/byokey/byokey/internal/clock"
	"github.com/byokey/byokey/internal/config"
	"github.com/byokey/byokey/internal/dispatcher"
	"github.com/byokey/byokey/internal/executor"
	"github.com/byokey/byokey/internal/httpclient"
	"github.com/byokey/byokey/internal/logging"
	"github.com/byokey/byokey/internal/registry"
	"github.com/byokey/byokey/internal/statusfeed"
	"github.com/byokey/byokey/internal/store"
	"github.com/byokey/byokey/internal/translator/build"
	"github.com/byokey/byokey/internal/usage"
)

// Stack holds every collaborator a subcommand needs, built once from a
// config snapshot. serve keeps it running for the process lifetime; login,
// logout and status build one, do their work, and let it fall out of scope.
type Stack struct {
	Config    *config.Snapshot
	Store     store.TokenStore
	Auth      *authmanager.Manager
	Executors map[store.ProviderID]executor.Executor
	Client    httpclient.HTTPClient
	Registry  *registry.Snapshot
	Tracker   *usage.Tracker
	Estimator *usage.Estimator
	Feed      *statusfeed.Hub
	Dispatch  *dispatcher.Dispatcher
}

// refreshers is the fixed provider->Refresher wiring: every provider gets
// an entry so a missing one is always a programming error, never a silent
// "refresh unsupported".
func refreshers() map[store.ProviderID]authmanager.Refresher {
	return map[store.ProviderID]authmanager.Refresher{
		store.Claude:      auth.NewClaudeRefresher(),
		store.Codex:       auth.NewCodexRefresher(),
		store.Gemini:      auth.NewGeminiRefresher(),
		store.Antigravity: auth.NewAntigravityRefresher(),
		store.Copilot:     auth.NewCopilotRefresher(),
		store.Kiro:        auth.NewKiroRefresher(),
		store.Kimi:        auth.NewKimiRefresher(),
		store.Qwen:        auth.NewQwenRefresher(),
		store.IFlow:       auth.NewIFlowRefresher(),
	}
}

func executors() map[store.ProviderID]executor.Executor {
	return map[store.ProviderID]executor.Executor{
		store.Claude:      executor.NewClaudeExecutor(),
		store.Codex:       executor.NewCodexExecutor(),
		store.Copilot:     executor.NewCopilotExecutor(),
		store.Gemini:      executor.NewGeminiExecutor(),
		store.Kiro:        executor.NewKiroExecutor(),
		store.Antigravity: executor.NewAntigravityExecutor(),
		store.Qwen:        executor.NewQwenExecutor(),
		store.Kimi:        executor.NewKimiExecutor(),
		store.IFlow:       executor.NewIFlowExecutor(),
	}
}

// loadConfigOnly builds just a config.Snapshot, for subcommands like `amp
// login` that only need to know where the server listens and never touch
// the token store or model registry.
func loadConfigOnly(configPath string) (*config.Snapshot, error) {
	return config.NewSnapshot(configPath)
}

// bootstrap builds the Stack shared by every subcommand. withRegistry is
// false for login/logout, which touch only the token store and never need
// a live model list (and must not block on an upstream model-list fetch
// just to revoke or add one account).
func bootstrap(ctx context.Context, configPath string, withRegistry bool) (*Stack, error) {
	cfgSnap, err := config.NewSnapshot(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := cfgSnap.Load()
	logging.Configure(cfg.Logging.Level, cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups, cfg.Logging.MaxAgeDays)

	tokenStore, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening token store: %w", err)
	}

	authMgr := authmanager.New(tokenStore, refreshers(), clock.System{})
	execs := executors()
	client := httpclient.New(cfg)
	tracker := usage.NewTracker()
	estimator := usage.NewEstimator()
	feed := statusfeed.NewHub()

	stack := &Stack{
		Config:    cfgSnap,
		Store:     tokenStore,
		Auth:      authMgr,
		Executors: execs,
		Client:    client,
		Tracker:   tracker,
		Estimator: estimator,
		Feed:      feed,
	}

	if !withRegistry {
		return stack, nil
	}

	reg, err := buildRegistry(ctx, cfg, authMgr, execs, client)
	if err != nil {
		return nil, fmt.Errorf("building model registry: %w", err)
	}
	stack.Registry = registry.NewSnapshot(reg)
	stack.Dispatch = dispatcher.New(cfgSnap, stack.Registry, authMgr, execs, client, build.Registry(), tracker, estimator, feed)
	return stack, nil
}

// buildRegistry wires one executor.ModelSource per enabled provider. Every
// current executor's FetchModels returns its static catalog unconditionally
// and never touches the credential, so a missing/expired account is logged
// and papered over with a zero Credential rather than propagated — letting
// Acquire's error reach registry.Build would abort the ENTIRE registry
// (Build fails the whole errgroup on a single source's error) just because
// one provider has no logged-in account yet.
func buildRegistry(ctx context.Context, cfg *config.Config, authMgr *authmanager.Manager, execs map[store.ProviderID]executor.Executor, client httpclient.HTTPClient) (*registry.Registry, error) {
	sources := make(map[store.ProviderID]registry.ProviderModelSource)
	for id, exec := range execs {
		providerCfg := cfg.Providers[string(id)]
		if !providerCfg.IsEnabled() {
			continue
		}
		id, exec := id, exec
		sources[id] = &executor.ModelSource{
			Exec:   exec,
			Client: client,
			Acquire: func(ctx context.Context) (store.Credential, error) {
				account, err := authMgr.Acquire(ctx, id, store.Active())
				if err != nil {
					log.WithField("provider", id).WithError(err).Debug("no usable account yet; falling back to the static catalog")
					return store.Credential{}, nil
				}
				return account.Credential, nil
			},
		}
	}
	return registry.Build(ctx, cfg, sources)
}
