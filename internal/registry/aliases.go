package registry

import "github.com/byokey/byokey/internal/store"

// ProviderPrefix returns the explicit-routing alias prefix for provider, e.g.
// "codex-" or "kimi-": namespacing a model id so a caller can force
// provider selection when model names collide across upstreams.
func ProviderPrefix(provider store.ProviderID) string {
	return string(provider) + "-"
}

// GenerateProviderAliases returns models plus one prefixed alias per model
// for explicit routing, parameterized over ProviderID instead of one
// function per provider.
func GenerateProviderAliases(provider store.ProviderID, models []ModelInfo) []ModelInfo {
	prefix := ProviderPrefix(provider)
	out := make([]ModelInfo, 0, len(models)*2)
	out = append(out, models...)
	for _, m := range models {
		alias := m
		alias.ID = prefix + m.ID
		alias.DisplayName = m.DisplayName + " (" + string(provider) + ")"
		out = append(out, alias)
	}
	return out
}
