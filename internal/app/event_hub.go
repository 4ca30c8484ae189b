package app

import (
	"sync"

	"github.com/linkgrab/linkgrab/internal/domain"
)

// EventHub fans job events out to per-job subscribers. Publishing never blocks:
// a subscriber whose buffer is full misses the event.
type EventHub struct {
	mu     sync.Mutex
	subs   map[string]map[chan domain.JobEvent]struct{}
	buffer int
}

// NewEventHub creates a hub whose subscriber channels hold buffer events
func NewEventHub(buffer int) *EventHub {
	if buffer < 1 {
		buffer = 64
	}
	return &EventHub{
		subs:   make(map[string]map[chan domain.JobEvent]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber for jobID. The channel is closed by Close
// or by the returned unsubscribe func, whichever comes first.
func (h *EventHub) Subscribe(jobID string) (<-chan domain.JobEvent, func()) {
	ch := make(chan domain.JobEvent, h.buffer)

	h.mu.Lock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[chan domain.JobEvent]struct{})
	}
	h.subs[jobID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[jobID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
				if len(set) == 0 {
					delete(h.subs, jobID)
				}
			}
		}
	}
}

// Publish delivers ev to every subscriber of ev.JobID
func (h *EventHub) Publish(ev domain.JobEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.JobID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes and removes every subscriber of jobID
func (h *EventHub) Close(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[jobID] {
		close(ch)
	}
	delete(h.subs, jobID)
}

// Subscribers returns the number of subscribers of jobID
func (h *EventHub) Subscribers(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}
