// Package feed delivers market ticks to subscribers. A Hub fans each symbol's
// tick stream out to any number of subscribers; providers push ticks into the
// hub from an external source.
package feed

import (
	"context"
	"sync"

	"tradeflow/internal/domain"
	"tradeflow/internal/metrics"
)

// Provider is a tick source that publishes into a Hub until its context is
// cancelled.
type Provider interface {
	// Name returns the provider identifier (e.g. "stub", "ws", "replay").
	Name() string

	// Run publishes ticks into the hub. It blocks until ctx is cancelled or a
	// fatal error occurs.
	Run(ctx context.Context, hub *Hub) error
}

// Hub is a per-symbol publish/subscribe fan-out for ticks. Publish never
// blocks: a subscriber whose buffer is full misses the tick.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[int]chan domain.Tick
	nextID  int
	bufSize int
	closed  bool
}

// NewHub creates a Hub whose subscriber channels buffer bufSize ticks.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Hub{
		subs:    make(map[string]map[int]chan domain.Tick),
		bufSize: bufSize,
	}
}

// Subscribe returns a channel of ticks for the given symbol and a cancel
// function. The channel is closed when the subscription is cancelled or the
// hub shuts down.
func (h *Hub) Subscribe(symbol string) (<-chan domain.Tick, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan domain.Tick, h.bufSize)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	if h.subs[symbol] == nil {
		h.subs[symbol] = make(map[int]chan domain.Tick)
	}
	id := h.nextID
	h.nextID++
	h.subs[symbol][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[symbol][id]; ok {
			delete(h.subs[symbol], id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish fans a tick out to every subscriber of its symbol. A slow consumer
// does not stall the feed: full buffers drop the tick.
func (h *Hub) Publish(tick domain.Tick) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	metrics.TicksTotal.WithLabelValues(tick.Symbol).Inc()
	for _, ch := range h.subs[tick.Symbol] {
		select {
		case ch <- tick:
		default:
			metrics.TicksDropped.WithLabelValues(tick.Symbol).Inc()
		}
	}
}

// Subscribers reports how many subscriptions exist for a symbol.
func (h *Hub) Subscribers(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[symbol])
}

// Close shuts the hub down and closes all subscriber channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, symSubs := range h.subs {
		for id, ch := range symSubs {
			delete(symSubs, id)
			close(ch)
		}
	}
}
