package sse

import "sync"

// Hub fans progress events out to subscribed HTTP clients. Subscribers that
// fall behind have messages dropped rather than blocking the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan []byte]struct{})}
}

// Subscribe registers a buffered channel to receive published messages.
// The caller owns the channel and must Unsubscribe before closing it.
func (h *Hub) Subscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[ch] = struct{}{}
}

// Unsubscribe removes a channel from the hub.
func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, ch)
}

// Publish delivers msg to every subscriber without blocking.
func (h *Hub) Publish(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			// drop if client not reading
		}
	}
}
