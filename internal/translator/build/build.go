// Package build assembles the translator.Registry from the concrete
// openai/anthropic/gemini dialect packages. It exists only to break the
// import cycle translator would otherwise have with its own dialect
// sub-packages (they import translator for the canonical types; translator
// cannot import them back).
package build

import (
	"github.com/byokey/byokey/internal/translator"
	"github.com/byokey/byokey/internal/translator/anthropic"
	"github.com/byokey/byokey/internal/translator/gemini"
	"github.com/byokey/byokey/internal/translator/openai"
)

// Registry returns the translator.Registry wired with all three dialects.
func Registry() translator.Registry {
	return translator.Registry{
		translator.OpenAI: {
			ParseRequest:    openai.ParseRequest,
			RenderRequest:   openai.RenderRequest,
			ParseResponse:   openai.ParseResponse,
			RenderResponse:  openai.RenderResponse,
			ParseStream:     func() translator.StreamDecoder { return openai.NewStreamDecoder() },
			RenderStreamEvt: func() translator.StreamEncoder { return openai.NewStreamEncoder() },
		},
		translator.Anthropic: {
			ParseRequest:    anthropic.ParseRequest,
			RenderRequest:   anthropic.RenderRequest,
			ParseResponse:   anthropic.ParseResponse,
			RenderResponse:  anthropic.RenderResponse,
			ParseStream:     func() translator.StreamDecoder { return anthropic.NewStreamDecoder() },
			RenderStreamEvt: func() translator.StreamEncoder { return anthropic.NewStreamEncoder() },
		},
		translator.Gemini: {
			ParseRequest:    gemini.ParseRequest,
			RenderRequest:   gemini.RenderRequest,
			ParseResponse:   gemini.ParseResponse,
			RenderResponse:  gemini.RenderResponse,
			ParseStream:     func() translator.StreamDecoder { return gemini.NewStreamDecoder() },
			RenderStreamEvt: func() translator.StreamEncoder { return gemini.NewStreamEncoder() },
		},
	}
}
