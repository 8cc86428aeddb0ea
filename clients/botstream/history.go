package botstream

import "sync"

// History retains the most recent accepted messages. When full, the oldest
// entry is evicted. Snapshots are returned newest-first for display.
type History struct {
	mu       sync.Mutex
	capacity int
	entries  []Message // oldest first internally
}

// NewHistory creates a history bounded to capacity entries.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{
		capacity: capacity,
		entries:  make([]Message, 0, capacity),
	}
}

// Push appends a message, evicting the oldest entry when at capacity.
func (h *History) Push(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) == h.capacity {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:h.capacity-1]
	}
	h.entries = append(h.entries, msg)
}

// Snapshot returns a copy of the retained messages, newest first.
func (h *History) Snapshot() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Message, len(h.entries))
	for i, m := range h.entries {
		out[len(h.entries)-1-i] = m
	}
	return out
}

// Len returns the number of retained messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
