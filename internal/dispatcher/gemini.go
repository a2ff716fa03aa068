package dispatcher

import (
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/byokey/byokey/internal/byokeyerr"
	"github.com/byokey/byokey/internal/translator"
)

// handleGeminiNative implements POST /v1beta/models/{model}:{action} (spec
// §6), Gemini's own wire shape rather than an OpenAI/Anthropic envelope.
// The model and streaming-or-not action are both packed into the path
// segment gin captures as *modelAction (e.g. "/gemini-2.0-flash:streamGenerateContent"),
// so this handler splits on ":" itself before falling into the shared
// Translate→Acquire→Execute pipeline with dialectIn/dialectOut both Gemini.
func (d *Dispatcher) handleGeminiNative(c *gin.Context) {
	requestID := d.requestIDFrom(c)

	raw := strings.TrimPrefix(c.Param("modelAction"), "/")
	model, action, ok := strings.Cut(raw, ":")
	if !ok || model == "" {
		writeError(c, byokeyerr.InvalidRequest("malformed Gemini path segment %q, expected \"{model}:{action}\"", raw))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, byokeyerr.InvalidRequest("reading request body: %v", err))
		return
	}

	reg := d.registry.Load()
	if reg == nil {
		writeError(c, byokeyerr.Internal(requestID, fmt.Errorf("model registry not ready")))
		return
	}
	providerID, canonicalModel, ok := reg.Resolve(model)
	if !ok {
		writeError(c, byokeyerr.ModelUnknown(model))
		return
	}

	dialectOut, ok := nativeDialect[providerID]
	if !ok {
		writeError(c, byokeyerr.Internal(requestID, fmt.Errorf("no native dialect registered for provider %q", providerID)))
		return
	}

	streamRequested := action == "streamGenerateContent"

	translated, err := d.dialects.TranslateRequest(translator.Gemini, dialectOut, body)
	if err != nil {
		writeError(c, byokeyerr.InvalidRequest("translating request: %v", err))
		return
	}

	providerCfg := d.cfg.Load().Providers[string(providerID)]
	d.dispatchTranslated(c, providerID, canonicalModel, providerCfg, translator.Gemini, dialectOut, translated, streamRequested)
}
