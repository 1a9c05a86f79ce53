// Package feed fans attempt events out to live subscribers of a user.
package feed

import (
	"context"
	"sync"

	"github.com/keystride/keystride/internal/domain/model"
	"github.com/keystride/keystride/pkg/metrics"
)

const defaultBuffer = 16

type subscriber struct {
	ch   chan model.AttemptEvent
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub delivers events to every subscriber of the event's user. A subscriber
// whose buffer is full misses the event; publishers never block.
type Hub struct {
	buffer int

	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		buffer: defaultBuffer,
		subs:   make(map[string]map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a listener for userID. The returned cancel func
// unregisters it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(userID string) (<-chan model.AttemptEvent, func()) {
	s := &subscriber{ch: make(chan model.AttemptEvent, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.close()
		return s.ch, func() {}
	}
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[userID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	metrics.AddFeedSubscribers(1)

	return s.ch, func() { h.unsubscribe(userID, s) }
}

func (h *Hub) unsubscribe(userID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[userID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, userID)
	}
	s.close()
	metrics.AddFeedSubscribers(-1)
}

// Publish sends e to the subscribers of e.UserID and returns how many
// received it.
func (h *Hub) Publish(_ context.Context, e model.AttemptEvent) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for s := range h.subs[e.UserID] {
		select {
		case s.ch <- e:
			delivered++
		default:
			metrics.RecordFeedDropped()
		}
	}
	return delivered
}

// Subscribers returns the number of listeners for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Len returns the total number of listeners.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

// Close drops every subscriber. Later subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for userID, set := range h.subs {
		for s := range set {
			s.close()
			metrics.AddFeedSubscribers(-1)
		}
		delete(h.subs, userID)
	}
}
