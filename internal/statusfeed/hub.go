// Package statusfeed implements the live event feed the supplemented
// `status --watch` command attaches to: a broadcast-only
// WebSocket hub that fans auth-refresh and request-completion events out to
// every connected CLI client. Grounded on
// jholhewres-devclaw/pkg/goclaw/gateway/websocket.go's envelope/upgrader
// shape, narrowed from that file's bidirectional JSON-RPC protocol to a
// one-way broadcast since nothing here needs a client→server request path.
package statusfeed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/byokey/byokey/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventType tags the kind of occurrence a Hub broadcasts.
type EventType string

const (
	EventAuthRefreshed EventType = "auth_refreshed"
	EventAuthFailed    EventType = "auth_failed"
	EventRequest       EventType = "request"
	EventRequestFailed EventType = "request_failed"
)

// Event is one line of the live status feed.
type Event struct {
	Type      EventType        `json:"type"`
	Provider  store.ProviderID `json:"provider,omitempty"`
	AccountID string           `json:"account_id,omitempty"`
	Message   string           `json:"message,omitempty"`
	At        time.Time        `json:"at"`
}

// client is one connected subscriber's outbound queue. A full queue drops
// the event rather than blocking Broadcast — the feed is best-effort
// observability, never a backpressure point for the request path.
type client struct {
	out chan Event
}

// Hub fans Publish calls out to every registered client. The zero value is
// not usable; construct with NewHub.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Publish fans ev out to every currently-registered client.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.out <- ev:
		default:
			log.Warn("statusfeed: dropping event for slow client")
		}
	}
}

// register adds a client and returns it; unregister removes it and closes
// its channel so the write pump exits.
func (h *Hub) register() *client {
	c := &client{out: make(chan Event, 32)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.out)
	}
	h.mu.Unlock()
}

// ClientCount reports how many subscribers are currently attached.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection and streams Events as JSON text frames,
// one Event per frame, until the client disconnects or the hub drops it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("statusfeed: websocket upgrade failed")
		return
	}
	defer conn.Close()

	c := h.register()
	defer h.unregister(c)

	// Drain client-initiated control frames (pings, close) so the
	// connection's read deadline keeps advancing; this feed never expects
	// an application-level message from the client.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for ev := range c.out {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
