package usage

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/byokey/byokey/internal/translator"
)

// codec is the slice of tokenizer.Codec this package depends on, narrowed so
// tests can substitute a fake instead of requiring a live tiktoken encoding
// table (the same narrow-interface-for-testing shape as httpclient.HTTPClient).
type codec interface {
	Encode(text string) (ids []uint, tokens []string, err error)
}

// Estimator counts prompt tokens for a translated request body when an
// upstream's own response omits usage accounting (Gemini's streaming path in
// particular never reports prompt tokens until the final chunk, and some
// providers drop usage entirely on error responses). Grounded on
// BaSui01-agentflow/llm/tokenizer/tiktoken.go's lazy-init-once pattern,
// adapted from the pkoukk/tiktoken-go encoding-name API to tiktoken-go/
// tokenizer's Codec.
type Estimator struct {
	mu    sync.Mutex
	codec codec
	err   error
	once  sync.Once
}

// NewEstimator builds an Estimator using the cl100k_base encoding, the
// closest available approximation across all three wire dialects — exact
// token counts are provider-specific and unknowable without their private
// tokenizers, so this is always an estimate.
func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) init() {
	e.once.Do(func() {
		e.codec, e.err = tokenizer.Get(tokenizer.Cl100kBase)
	})
}

// newEstimatorWithCodec builds an Estimator around a pre-resolved codec,
// letting tests avoid the live tiktoken encoding-table fetch.
func newEstimatorWithCodec(c codec) *Estimator {
	e := &Estimator{codec: c}
	e.once.Do(func() {})
	return e
}

// CountText estimates the token count of a single string.
func (e *Estimator) CountText(text string) (int, error) {
	e.init()
	if e.err != nil {
		return 0, e.err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// CountMessages estimates the prompt token count of a canonical message set,
// counting role labels and tool-call payloads the same coarse way a chat
// template would, without attempting per-provider exactness.
func (e *Estimator) CountMessages(messages []translator.Message) (int, error) {
	total := 0
	for _, m := range messages {
		n, err := e.CountText(m.TextContent())
		if err != nil {
			return 0, err
		}
		total += n + 4 // role/name framing overhead, matching the chat-template rule of thumb
	}
	return total, nil
}
