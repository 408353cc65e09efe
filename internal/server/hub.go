package server

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/flowpaste/flowpaste/internal/orchestrator"
)

// DefaultSubscriberBuffer is the per-subscriber event buffer.
const DefaultSubscriberBuffer = 256

// Hub fans orchestrator events out to event stream subscribers. It implements
// orchestrator.Sink. Publish never blocks: a subscriber whose buffer is full
// is evicted and its channel closed, so one slow client cannot stall the
// orchestrator.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan orchestrator.Event]struct{}
	buffer int
	closed bool
}

// NewHub creates a hub with the given per-subscriber buffer size.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[chan orchestrator.Event]struct{}),
		buffer: buffer,
	}
}

// Publish delivers ev to every subscriber.
func (h *Hub) Publish(ev orchestrator.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			delete(h.subs, ch)
			close(ch)
			log.Warn().Str("request_id", ev.RequestID).Msg("event_subscriber_evicted")
		}
	}
}

// Subscribe registers a subscriber. The returned channel is closed when the
// subscriber is evicted, unsubscribed, or the hub is closed. The cancel
// function is idempotent.
func (h *Hub) Subscribe() (<-chan orchestrator.Event, func()) {
	ch := make(chan orchestrator.Event, h.buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
