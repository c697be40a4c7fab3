package store

import "sync"

// watchHub fans out pending-set change signals to subscribers. Signals are
// coalesced: a subscriber that has not drained its channel sees at most one
// buffered notification, which is enough to wake a drain loop.
type watchHub struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan struct{} // tenant id -> subscriber id -> channel
}

func newWatchHub() *watchHub {
	return &watchHub{subs: make(map[string]map[int]chan struct{})}
}

func (h *watchHub) subscribe(tenantID string) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++

	ch := make(chan struct{}, 1)
	if h.subs[tenantID] == nil {
		h.subs[tenantID] = make(map[int]chan struct{})
	}
	h.subs[tenantID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[tenantID], id)
	}
	return ch, cancel
}

func (h *watchHub) notify(tenantID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[tenantID] {
		select {
		case ch <- struct{}{}:
		default:
			// Subscriber already has a wakeup queued.
		}
	}
}
