package dispatcher

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// openAIModel mirrors the `/v1/models` entry shape every OpenAI-compatible
// client expects, built from registry.ModelInfo.
type openAIModel struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type modelList struct {
	Object string        `json:"object"`
	Data   []openAIModel `json:"data"`
}

// handleListModels implements GET /v1/models, returning exactly
// the enabled, non-excluded model set ( property 6).
func (d *Dispatcher) handleListModels(c *gin.Context) {
	reg := d.registry.Load()
	out := modelList{Object: "list", Data: []openAIModel{}}
	if reg == nil {
		c.JSON(http.StatusOK, out)
		return
	}
	for _, m := range reg.ListModels() {
		owner := m.OwnedBy
		if owner == "" {
			owner = "byokey"
		}
		out.Data = append(out.Data, openAIModel{ID: m.ID, Object: "model", Created: m.Created, OwnedBy: owner})
	}
	c.JSON(http.StatusOK, out)
}

// usageCounter is the JSON shape of one usage.Counter entry returned by the
// supplemented GET /v1/usage route.
type usageCounter struct {
	Provider      string `json:"provider"`
	AccountID     string `json:"account_id"`
	RequestCount  int64  `json:"request_count"`
	ErrorCount    int64  `json:"error_count"`
	PromptTokens  int64  `json:"estimated_prompt_tokens"`
	LastRequestAt string `json:"last_request_at,omitempty"`
	LastError     string `json:"last_error,omitempty"`
}

// handleUsage implements the supplemented GET /v1/usage route, surfacing
// internal/usage.Tracker's per-(provider,account) counters as JSON so a CLI
// or dashboard can poll request/error counts without opening the
// internal/statusfeed websocket.
func (d *Dispatcher) handleUsage(c *gin.Context) {
	if d.tracker == nil {
		c.JSON(http.StatusOK, []usageCounter{})
		return
	}
	snapshot := d.tracker.Snapshot()
	out := make([]usageCounter, 0, len(snapshot))
	for _, ctr := range snapshot {
		entry := usageCounter{
			Provider:     string(ctr.Provider),
			AccountID:    ctr.AccountID,
			RequestCount: ctr.RequestCount,
			ErrorCount:   ctr.ErrorCount,
			PromptTokens: ctr.EstimatedPromptToken,
		}
		if !ctr.LastRequestAt.IsZero() {
			entry.LastRequestAt = ctr.LastRequestAt.Format("2006-01-02T15:04:05Z07:00")
		}
		if ctr.LastError != "" {
			entry.LastError = ctr.LastError
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, out)
}
