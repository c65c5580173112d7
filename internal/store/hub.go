package store

import (
	"sync"

	"github.com/google/uuid"

	"github.com/HamStudy/gridwatch/internal/components/performance"
)

// Hub connects stores opened on the same file. A change made through one
// store is delivered to every other store on that path, and all of them share
// a single pending write.
type Hub struct {
	mu     sync.RWMutex
	stores map[string]map[uuid.UUID]*Store
	writes *performance.UpdateDebouncer
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		stores: make(map[string]map[uuid.UUID]*Store),
		writes: performance.NewUpdateDebouncer(),
	}
}

func (h *Hub) register(s *Store) {
	h.mu.Lock()
	defer h.mu.Unlock()

	peers, ok := h.stores[s.path]
	if !ok {
		peers = make(map[uuid.UUID]*Store)
		h.stores[s.path] = peers
	}
	peers[s.id] = s
}

// unregister removes s and reports whether it was the last store on its path.
func (h *Hub) unregister(s *Store) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	peers := h.stores[s.path]
	delete(peers, s.id)
	if len(peers) == 0 {
		delete(h.stores, s.path)
		return true
	}
	return false
}

// broadcast delivers a change to every store on the path except the writer.
func (h *Hub) broadcast(from *Store, key string, value any, deleted bool) {
	h.mu.RLock()
	targets := make([]*Store, 0, len(h.stores[from.path]))
	for id, peer := range h.stores[from.path] {
		if id != from.id {
			targets = append(targets, peer)
		}
	}
	h.mu.RUnlock()

	for _, peer := range targets {
		peer.receive(key, value, deleted)
	}
}

// Peers returns how many stores are open on path.
func (h *Hub) Peers(path string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.stores[path])
}
