package broadcast

import (
	"context"
	"sync"
	"sync/atomic"

	"storefront/internal/domain"
	"storefront/internal/logger"

	"go.uber.org/zap"
)

// Stats is a snapshot of hub activity
type Stats struct {
	Listeners int    `json:"listeners"`
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

// Subscription is one listener's view of the hub
type Subscription struct {
	events chan domain.Event
	hub    *Hub
	once   sync.Once
}

// Events returns the receive channel. It is closed when the subscription or the hub closes.
func (s *Subscription) Events() <-chan domain.Event {
	return s.events
}

// Close detaches the listener from the hub
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Hub is the in-process fan-out to every connected listener
type Hub struct {
	mu        sync.RWMutex
	listeners map[*Subscription]struct{}
	closed    bool
	published atomic.Uint64
	dropped   atomic.Uint64
	logger    *zap.Logger
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		listeners: make(map[*Subscription]struct{}),
		logger:    logger,
	}
}

// Subscribe registers a listener with the given channel buffer
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}

	sub := &Subscription{
		events: make(chan domain.Event, buffer),
		hub:    h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.events)
		sub.once.Do(func() {})
		return sub
	}

	h.listeners[sub] = struct{}{}
	h.logger.Debug("Listener subscribed", zap.Int("listeners", len(h.listeners)))
	return sub
}

// Publish delivers event to every listener without blocking.
// A listener whose buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, event domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	h.published.Add(1)
	for sub := range h.listeners {
		select {
		case sub.events <- event:
		default:
			h.dropped.Add(1)
			h.logger.Warn("Dropping event for slow listener", logger.Event(event))
		}
	}
}

// Stats returns current counters
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return Stats{
		Listeners: len(h.listeners),
		Published: h.published.Load(),
		Dropped:   h.dropped.Load(),
	}
}

// Close detaches and closes every listener; later publishes are ignored
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for sub := range h.listeners {
		sub.once.Do(func() { close(sub.events) })
		delete(h.listeners, sub)
	}
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.listeners, sub)
	sub.once.Do(func() { close(sub.events) })
}
