package usage

import (
	"errors"
	"testing"
	"time"

	"github.com/byokey/byokey/internal/store"
)

func TestRecordSuccessAccumulates(t *testing.T) {
	tr := NewTracker()
	tr.RecordSuccess(store.Claude, "acct-1", 100)
	tr.RecordSuccess(store.Claude, "acct-1", 50)

	snap := tr.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 counter, got %d", len(snap))
	}
	c := snap[0]
	if c.RequestCount != 2 {
		t.Fatalf("expected RequestCount 2, got %d", c.RequestCount)
	}
	if c.EstimatedPromptToken != 150 {
		t.Fatalf("expected 150 estimated tokens, got %d", c.EstimatedPromptToken)
	}
	if c.LastRequestAt.IsZero() {
		t.Fatal("expected LastRequestAt to be set")
	}
}

func TestRecordErrorTracksLastError(t *testing.T) {
	tr := NewTracker()
	tr.RecordSuccess(store.Codex, "acct-2", 10)
	tr.RecordError(store.Codex, "acct-2", errors.New("upstream 500"))

	snap := tr.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 counter, got %d", len(snap))
	}
	c := snap[0]
	if c.RequestCount != 2 {
		t.Fatalf("expected RequestCount 2, got %d", c.RequestCount)
	}
	if c.ErrorCount != 1 {
		t.Fatalf("expected ErrorCount 1, got %d", c.ErrorCount)
	}
	if c.LastError != "upstream 500" {
		t.Fatalf("expected last error recorded, got %q", c.LastError)
	}
}

func TestCountersAreIsolatedPerAccount(t *testing.T) {
	tr := NewTracker()
	tr.RecordSuccess(store.Claude, "acct-a", 1)
	tr.RecordSuccess(store.Claude, "acct-b", 1)
	tr.RecordSuccess(store.Gemini, "acct-a", 1)

	if len(tr.Snapshot()) != 3 {
		t.Fatalf("expected 3 distinct counters, got %d", len(tr.Snapshot()))
	}
}

func TestNowSeamIsMonotonicEnoughForOrdering(t *testing.T) {
	orig := now
	defer func() { now = orig }()

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now = func() time.Time { return t0 }

	tr := NewTracker()
	tr.RecordSuccess(store.Claude, "acct-1", 1)
	snap := tr.Snapshot()
	if !snap[0].LastRequestAt.Equal(t0) {
		t.Fatalf("expected LastRequestAt %v, got %v", t0, snap[0].LastRequestAt)
	}
}
