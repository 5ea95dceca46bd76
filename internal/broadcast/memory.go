package broadcast

import (
	"context"
	"fmt"
	"sync"
)

// Hub is an in-process signal exchange mirroring shared-storage
// semantics: the last signal is retained for late joiners, and a handle
// never hears its own publishes. It backs single-process deployments
// where several dashboard windows share one runtime, and tests.
type Hub struct {
	mu   sync.RWMutex
	subs map[uint64]hubSub
	next uint64
	last *Signal
}

type hubSub struct {
	owner *MemoryBus
	fn    func(Signal)
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]hubSub)}
}

// Bus returns a tab-local handle on the hub.
func (h *Hub) Bus() *MemoryBus {
	return &MemoryBus{hub: h}
}

// MemoryBus is one tab's handle on a Hub. Delivery is synchronous on
// the publisher's goroutine.
type MemoryBus struct {
	hub *Hub
}

func (b *MemoryBus) Publish(ctx context.Context, s Signal) error {
	if !s.Kind.Valid() {
		return fmt.Errorf("unknown signal kind %q", s.Kind)
	}
	h := b.hub
	h.mu.Lock()
	stored := s
	h.last = &stored
	targets := make([]func(Signal), 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.owner == b {
			continue
		}
		targets = append(targets, sub.fn)
	}
	h.mu.Unlock()

	for _, fn := range targets {
		fn(s)
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, fn func(Signal)) (func(), error) {
	h := b.hub
	h.mu.Lock()
	h.next++
	id := h.next
	h.subs[id] = hubSub{owner: b, fn: fn}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}, nil
}

// Snapshot returns the last published signal, if any.
func (b *MemoryBus) Snapshot(ctx context.Context) (*Signal, error) {
	h := b.hub
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.last == nil {
		return nil, nil
	}
	s := *h.last
	return &s, nil
}
