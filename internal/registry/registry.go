// Package registry implements the ModelRegistry : the
// mapping from a model-name string to (ProviderId, canonical upstream
// model), built once per Config snapshot and immutable thereafter.
package registry

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/byokey/byokey/internal/config"
	"github.com/byokey/byokey/internal/store"
)

// ModelInfo describes one upstream model, shaped close to the OpenAI
// `/v1/models` entry with the context-window extras BYOKEY's clients expect.
type ModelInfo struct {
	ID                  string
	Object              string
	Created             int64
	OwnedBy             string
	DisplayName         string
	Description         string
	ContextLength       int
	MaxCompletionTokens int
}

// ProviderModelSource fetches the live model list for one provider. Executors
// implement this; the registry only depends on the narrow interface so it
// never imports internal/executor (which itself depends on registry for
// resolution).
type ProviderModelSource interface {
	FetchModels(ctx context.Context) ([]ModelInfo, error)
}

// resolvedModel is one entry of the registry's resolution table.
type resolvedModel struct {
	provider       store.ProviderID
	canonicalModel string
	info           ModelInfo
}

// Registry is the immutable, per-snapshot model table. A new Registry is
// built on every config reload; readers always hold a fully-formed instance,
// never a partially-populated one ("Model registry: immutable per
// snapshot").
type Registry struct {
	byModel    map[string]resolvedModel
	aliases    map[string]string // alias -> canonical registry key
	exclusions map[string]map[string]bool
	enabled    map[store.ProviderID]bool
}

// Build constructs a Registry from cfg and the live model sources keyed by
// provider id. Sources are queried concurrently via errgroup, matching the
// teacher's per-client FetchModels bootstrap pattern generalized across
// providers instead of per-account clients.
func Build(ctx context.Context, cfg *config.Config, sources map[store.ProviderID]ProviderModelSource) (*Registry, error) {
	type fetched struct {
		provider store.ProviderID
		models   []ModelInfo
	}
	results := make([]fetched, len(sources))
	providerList := make([]store.ProviderID, 0, len(sources))
	for p := range sources {
		providerList = append(providerList, p)
	}
	sort.Slice(providerList, func(i, j int) bool { return providerList[i] < providerList[j] })

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providerList {
		i, p := i, p
		g.Go(func() error {
			models, err := sources[p].FetchModels(gctx)
			if err != nil {
				return err
			}
			results[i] = fetched{provider: p, models: models}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reg := &Registry{
		byModel:    make(map[string]resolvedModel),
		aliases:    make(map[string]string),
		exclusions: make(map[string]map[string]bool),
		enabled:    make(map[store.ProviderID]bool),
	}
	for _, f := range results {
		pc := cfg.Providers[string(f.provider)]
		reg.enabled[f.provider] = pc.IsEnabled()
		excl := make(map[string]bool, len(pc.ModelExclusion))
		for _, m := range pc.ModelExclusion {
			excl[m] = true
		}
		reg.exclusions[string(f.provider)] = excl

		for _, m := range f.models {
			reg.byModel[m.ID] = resolvedModel{provider: f.provider, canonicalModel: m.ID, info: m}
		}
		for from, to := range pc.ModelAliases {
			reg.aliases[from] = to
		}
	}
	return reg, nil
}

// Resolve looks up a model name: exact match, then alias table, else
// ModelUnknown (the caller maps that to a 400/404 at the HTTP boundary).
func (r *Registry) Resolve(model string) (store.ProviderID, string, bool) {
	if rm, ok := r.lookup(model); ok {
		return rm.provider, rm.canonicalModel, true
	}
	if target, ok := r.aliases[model]; ok {
		if rm, ok := r.lookup(target); ok {
			return rm.provider, rm.canonicalModel, true
		}
	}
	return "", "", false
}

func (r *Registry) lookup(model string) (resolvedModel, bool) {
	rm, ok := r.byModel[model]
	if !ok {
		return resolvedModel{}, false
	}
	if r.isExcluded(rm.provider, model) || !r.enabled[rm.provider] {
		return resolvedModel{}, false
	}
	return rm, true
}

func (r *Registry) isExcluded(provider store.ProviderID, model string) bool {
	return r.exclusions[string(provider)][model]
}

// ListModels returns exactly {m : registry(m).provider.enabled ∧ m ∉
// exclusions}, sorted lexicographically.
func (r *Registry) ListModels() []ModelInfo {
	out := make([]ModelInfo, 0, len(r.byModel))
	for id, rm := range r.byModel {
		if !r.enabled[rm.provider] || r.isExcluded(rm.provider, id) {
			continue
		}
		out = append(out, rm.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
