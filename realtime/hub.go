package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"rewardkit/core"
)

// Hub fans reward events out to subscribers, e.g. per-user level-up
// notification streams. Sends never block: a slow subscriber drops
// events rather than stalling the grant path.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

type subscriber struct {
	ch chan core.Event
	// user filters the stream to one user's events; empty receives all.
	user core.UserID
}

func NewHub() *Hub { return &Hub{subs: map[int]subscriber{}} }

// Subscribe receives all events.
func (h *Hub) Subscribe(buffer int) (int, <-chan core.Event) {
	return h.subscribe(buffer, "")
}

// SubscribeUser receives only the given user's events.
func (h *Hub) SubscribeUser(buffer int, user core.UserID) (int, <-chan core.Event) {
	return h.subscribe(buffer, user)
}

func (h *Hub) subscribe(buffer int, user core.UserID) (int, <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	ch := make(chan core.Event, buffer)
	h.subs[id] = subscriber{ch: ch, user: user}
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	h.mu.RLock()
	// copy to avoid holding lock during send
	receivers := make([]subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		receivers = append(receivers, sub)
	}
	h.mu.RUnlock()
	for _, sub := range receivers {
		if sub.user != "" && sub.user != ev.UserID {
			continue
		}
		select {
		case sub.ch <- ev:
		default: /* drop if full */
		}
	}
}

// MarshalJSON is a helper to convert events to JSON bytes for WebSocket/SSE.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
