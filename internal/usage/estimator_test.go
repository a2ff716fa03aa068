package usage

import (
	"strings"
	"testing"

	"github.com/byokey/byokey/internal/translator"
)

// fakeCodec counts tokens as whitespace-split words, avoiding a dependency
// on tiktoken's live encoding tables in tests.
type fakeCodec struct{}

func (fakeCodec) Encode(text string) ([]uint, []string, error) {
	words := strings.Fields(text)
	ids := make([]uint, len(words))
	for i := range ids {
		ids[i] = uint(i)
	}
	return ids, words, nil
}

func TestCountTextUsesCodec(t *testing.T) {
	e := newEstimatorWithCodec(fakeCodec{})
	n, err := e.CountText("the quick brown fox")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 tokens, got %d", n)
	}
}

func TestCountMessagesAddsFramingOverheadPerMessage(t *testing.T) {
	e := newEstimatorWithCodec(fakeCodec{})
	messages := []translator.Message{
		{Role: "system", Parts: []translator.Part{{Kind: translator.PartText, Text: "be terse"}}},
		{Role: "user", Parts: []translator.Part{{Kind: translator.PartText, Text: "hello there friend"}}},
	}
	n, err := e.CountMessages(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// "be terse" -> 2 words + 4 overhead; "hello there friend" -> 3 words + 4 overhead.
	if n != 13 {
		t.Fatalf("expected 13, got %d", n)
	}
}

func TestCountMessagesIncludesToolResultText(t *testing.T) {
	e := newEstimatorWithCodec(fakeCodec{})
	messages := []translator.Message{
		{Role: "tool", Parts: []translator.Part{{Kind: translator.PartToolResult, ToolResultContent: "42 degrees"}}},
	}
	n, err := e.CountMessages(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 6 { // 2 words + 4 overhead
		t.Fatalf("expected 6, got %d", n)
	}
}
