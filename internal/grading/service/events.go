package service

import (
	"sync"

	"dezolver/internal/grading/model"
)

// Hub fans status snapshots out to live subscribers, one channel per watcher.
// Delivery is best-effort: a slow subscriber drops updates rather than
// blocking the grading path, and the authoritative state stays in the store.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan model.StatusSnapshot]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan model.StatusSnapshot]struct{})}
}

// Subscribe registers a watcher for one submission. The returned cancel
// function must be called to release the channel.
func (h *Hub) Subscribe(submissionID string) (<-chan model.StatusSnapshot, func()) {
	ch := make(chan model.StatusSnapshot, 8)

	h.mu.Lock()
	watchers, ok := h.subs[submissionID]
	if !ok {
		watchers = make(map[chan model.StatusSnapshot]struct{})
		h.subs[submissionID] = watchers
	}
	watchers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if watchers, ok := h.subs[submissionID]; ok {
			if _, live := watchers[ch]; live {
				delete(watchers, ch)
				close(ch)
			}
			if len(watchers) == 0 {
				delete(h.subs, submissionID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a snapshot to every watcher of its submission.
func (h *Hub) Publish(snap model.StatusSnapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[snap.SubmissionID] {
		select {
		case ch <- snap:
		default:
		}
	}
}
