package executor

import (
	"github.com/tidwall/sjson"

	"github.com/byokey/byokey/internal/config"
)

// applyPayloadRules applies a provider's configured strip/set rules (
// payload_rules) to a request body already translated into the upstream's
// dialect. Set runs before Strip so a rule can set a field and strip a
// different one in the same pass. Set is a map, so the order in which its
// entries apply is not defined; Strip paths apply in list order.
func applyPayloadRules(body []byte, rules config.PayloadRules) []byte {
	out := body
	for path, value := range rules.Set {
		if updated, err := sjson.SetBytes(out, path, value); err == nil {
			out = updated
		}
	}
	for _, path := range rules.Strip {
		if updated, err := sjson.DeleteBytes(out, path); err == nil {
			out = updated
		}
	}
	return out
}

// substituteModel overwrites the upstream-facing model field with model,
// applied after registry alias resolution so the executor always sends the
// canonical upstream model name regardless of what the client requested.
func substituteModel(body []byte, path, model string) []byte {
	updated, err := sjson.SetBytes(body, path, model)
	if err != nil {
		return body
	}
	return updated
}
