package alert

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/geohazard-service/internal/domain"
	"github.com/couchcryptid/geohazard-service/internal/observability"
)

// Hub fans alerts out to in-process subscribers such as WebSocket clients.
// Publish never blocks: a subscriber whose buffer is full misses the alert
// and can catch up from history.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	metrics *observability.Metrics
}

// Subscription is one consumer's view of the hub.
type Subscription struct {
	hub     *Hub
	ch      chan domain.Alert
	once    sync.Once
	dropped atomic.Int64
}

// NewHub creates a hub with no subscribers.
func NewHub(metrics *observability.Metrics) *Hub {
	return &Hub{subs: make(map[*Subscription]struct{}), metrics: metrics}
}

// Subscribe registers a consumer with the given buffer size (minimum 1).
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	s := &Subscription{hub: h, ch: make(chan domain.Alert, buffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.metrics.HubSubscribers.Set(float64(n))
	return s
}

// Publish offers a to every subscriber without waiting.
func (h *Hub) Publish(_ context.Context, a domain.Alert) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.ch <- a:
		default:
			s.dropped.Add(1)
			h.metrics.HubDropped.Inc()
		}
	}
	return nil
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Alerts is closed once the subscription is closed.
func (s *Subscription) Alerts() <-chan domain.Alert {
	return s.ch
}

// Dropped counts alerts this subscriber missed.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		delete(h.subs, s)
		n := len(h.subs)
		close(s.ch)
		h.mu.Unlock()
		h.metrics.HubSubscribers.Set(float64(n))
	})
}
