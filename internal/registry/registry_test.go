package registry

import (
	"context"
	"testing"

	"github.com/byokey/byokey/internal/config"
	"github.com/byokey/byokey/internal/store"
)

type fakeSource struct {
	models []ModelInfo
}

func (f fakeSource) FetchModels(context.Context) ([]ModelInfo, error) {
	return f.models, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Providers = map[string]config.ProviderConfig{
		"claude": {},
		"codex": {
			ModelExclusion: []string{"gpt-4o-mini"},
		},
	}
	return cfg
}

func TestRegistryResolveExactMatch(t *testing.T) {
	cfg := testConfig(t)
	sources := map[store.ProviderID]ProviderModelSource{
		store.Claude: fakeSource{models: StaticCatalog[store.Claude]},
	}
	reg, err := Build(context.Background(), cfg, sources)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	provider, canonical, ok := reg.Resolve("claude-sonnet-4-5")
	if !ok || provider != store.Claude || canonical != "claude-sonnet-4-5" {
		t.Fatalf("unexpected resolve result: provider=%v canonical=%v ok=%v", provider, canonical, ok)
	}
}

func TestRegistryResolveUnknownModel(t *testing.T) {
	cfg := testConfig(t)
	reg, err := Build(context.Background(), cfg, map[store.ProviderID]ProviderModelSource{
		store.Claude: fakeSource{models: StaticCatalog[store.Claude]},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, ok := reg.Resolve("nonexistent-model"); ok {
		t.Fatal("expected ModelUnknown for unregistered model")
	}
}

func TestRegistryExclusionOverridesResolveAndList(t *testing.T) {
	cfg := testConfig(t)
	models := []ModelInfo{{ID: "gpt-4o-mini"}, {ID: "gpt-5.1"}}
	reg, err := Build(context.Background(), cfg, map[store.ProviderID]ProviderModelSource{
		store.Codex: fakeSource{models: models},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, ok := reg.Resolve("gpt-4o-mini"); ok {
		t.Fatal("expected excluded model to resolve as unknown")
	}
	list := reg.ListModels()
	for _, m := range list {
		if m.ID == "gpt-4o-mini" {
			t.Fatal("expected excluded model to be absent from ListModels")
		}
	}
}

func TestRegistryListModelsSortedAndEnabledOnly(t *testing.T) {
	disabled := false
	cfg := testConfig(t)
	cfg.Providers["codex"] = config.ProviderConfig{Enabled: &disabled}
	reg, err := Build(context.Background(), cfg, map[store.ProviderID]ProviderModelSource{
		store.Claude: fakeSource{models: []ModelInfo{{ID: "b"}, {ID: "a"}}},
		store.Codex:  fakeSource{models: []ModelInfo{{ID: "z"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	list := reg.ListModels()
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Fatalf("expected sorted [a b] excluding disabled provider, got %+v", list)
	}
}

func TestRegistryAliasResolution(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers["claude"] = config.ProviderConfig{
		ModelAliases: map[string]string{"my-alias": "claude-sonnet-4-5"},
	}
	reg, err := Build(context.Background(), cfg, map[store.ProviderID]ProviderModelSource{
		store.Claude: fakeSource{models: StaticCatalog[store.Claude]},
	})
	if err != nil {
		t.Fatal(err)
	}
	provider, canonical, ok := reg.Resolve("my-alias")
	if !ok || provider != store.Claude || canonical != "claude-sonnet-4-5" {
		t.Fatalf("expected alias to resolve to claude-sonnet-4-5, got provider=%v canonical=%v ok=%v", provider, canonical, ok)
	}
}

func TestGenerateProviderAliasesAddsPrefixedCopy(t *testing.T) {
	models := []ModelInfo{{ID: "gpt-5.1", DisplayName: "GPT-5.1"}}
	out := GenerateProviderAliases(store.Codex, models)
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if out[1].ID != "codex-gpt-5.1" {
		t.Fatalf("expected prefixed alias id, got %s", out[1].ID)
	}
}
