package statusfeed

import (
	"testing"
	"time"

	"github.com/byokey/byokey/internal/store"
)

func TestPublishFansOutToAllClients(t *testing.T) {
	h := NewHub()
	c1 := h.register()
	c2 := h.register()
	defer h.unregister(c1)
	defer h.unregister(c2)

	h.Publish(Event{Type: EventAuthRefreshed, Provider: store.Claude, AccountID: "acct-1"})

	for _, c := range []*client{c1, c2} {
		select {
		case ev := <-c.out:
			if ev.Type != EventAuthRefreshed || ev.Provider != store.Claude {
				t.Fatalf("unexpected event: %+v", ev)
			}
			if ev.At.IsZero() {
				t.Fatal("expected Publish to stamp At when unset")
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out event")
		}
	}
}

func TestUnregisterStopsFurtherDelivery(t *testing.T) {
	h := NewHub()
	c := h.register()
	h.unregister(c)

	if h.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unregister, got %d", h.ClientCount())
	}
	// Publishing after unregister must not panic or send on the closed channel.
	h.Publish(Event{Type: EventRequest})
}

func TestClientCountTracksRegistrations(t *testing.T) {
	h := NewHub()
	if h.ClientCount() != 0 {
		t.Fatalf("expected 0, got %d", h.ClientCount())
	}
	c1 := h.register()
	if h.ClientCount() != 1 {
		t.Fatalf("expected 1, got %d", h.ClientCount())
	}
	c2 := h.register()
	if h.ClientCount() != 2 {
		t.Fatalf("expected 2, got %d", h.ClientCount())
	}
	h.unregister(c1)
	h.unregister(c2)
	if h.ClientCount() != 0 {
		t.Fatalf("expected 0, got %d", h.ClientCount())
	}
}

func TestPublishDropsEventForFullClientQueueWithoutBlocking(t *testing.T) {
	h := NewHub()
	c := h.register()
	defer h.unregister(c)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ { // more than the client's buffer size
			h.Publish(Event{Type: EventRequest, Message: "flood"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full client queue instead of dropping")
	}
}
