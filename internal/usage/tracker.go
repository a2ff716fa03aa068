// Package usage implements the per-(provider, account) rolling request
// counters that back GET /v1/usage and the status command's summary line.
// Tracking is ambient observability only — a Tracker failing to update
// never blocks or alters a request's outcome.
package usage

import (
	"sync"
	"time"

	"github.com/byokey/byokey/internal/store"
)

// Counter is one (provider, account) cell of the usage table.
type Counter struct {
	Provider             store.ProviderID `json:"provider"`
	AccountID            string           `json:"account_id"`
	RequestCount         int64            `json:"request_count"`
	ErrorCount           int64            `json:"error_count"`
	EstimatedPromptToken int64            `json:"estimated_prompt_tokens"`
	LastRequestAt        time.Time        `json:"last_request_at,omitempty"`
	LastError            string           `json:"last_error,omitempty"`
	LastErrorAt          time.Time        `json:"last_error_at,omitempty"`
}

type key struct {
	provider  store.ProviderID
	accountID string
}

// Tracker holds one Counter per (provider, account), guarded for concurrent
// dispatcher goroutines the way authmanager.Manager guards its account map.
type Tracker struct {
	mu       sync.RWMutex
	counters map[key]*Counter
}

// NewTracker builds an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{counters: make(map[key]*Counter)}
}

// RecordSuccess increments the request count and adds promptTokens for
// (provider, accountID), creating the counter on first use.
func (t *Tracker) RecordSuccess(provider store.ProviderID, accountID string, promptTokens int) {
	c := t.counterFor(provider, accountID)
	t.mu.Lock()
	defer t.mu.Unlock()
	c.RequestCount++
	c.EstimatedPromptToken += int64(promptTokens)
	c.LastRequestAt = now()
}

// RecordError increments the request and error counts and records cause.
func (t *Tracker) RecordError(provider store.ProviderID, accountID string, cause error) {
	c := t.counterFor(provider, accountID)
	t.mu.Lock()
	defer t.mu.Unlock()
	c.RequestCount++
	c.ErrorCount++
	c.LastRequestAt = now()
	c.LastErrorAt = c.LastRequestAt
	if cause != nil {
		c.LastError = cause.Error()
	}
}

// counterFor returns the Counter for (provider, accountID), allocating it
// under a write lock on first access.
func (t *Tracker) counterFor(provider store.ProviderID, accountID string) *Counter {
	k := key{provider: provider, accountID: accountID}

	t.mu.RLock()
	c, ok := t.counters[k]
	t.mu.RUnlock()
	if ok {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.counters[k]; ok {
		return c
	}
	c = &Counter{Provider: provider, AccountID: accountID}
	t.counters[k] = c
	return c
}

// Snapshot returns a stable copy of every tracked counter, safe to
// serialize directly as the GET /v1/usage response body.
func (t *Tracker) Snapshot() []Counter {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Counter, 0, len(t.counters))
	for _, c := range t.counters {
		out = append(out, *c)
	}
	return out
}

// now is a seam so tests can't rely on wall-clock ordering across fast calls.
var now = time.Now
