package caption

import (
	"sync"

	"captionkit/core"
)

const DefaultHistorySize = 10

// History keeps the most recent captions of a session in arrival order.
// Older entries are dropped.
type History struct {
	mu    sync.RWMutex
	limit int
	items []core.Caption
	seen  map[string]struct{}
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{limit: limit, seen: make(map[string]struct{})}
}

// Add stores a copy of c. It reports false if a caption with the same ID is
// already held.
func (h *History) Add(c core.Caption) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.ID != "" {
		if _, dup := h.seen[c.ID]; dup {
			return false
		}
		h.seen[c.ID] = struct{}{}
	}
	h.items = append(h.items, c)
	if over := len(h.items) - h.limit; over > 0 {
		for _, old := range h.items[:over] {
			delete(h.seen, old.ID)
		}
		h.items = append(h.items[:0:0], h.items[over:]...)
	}
	return true
}

// Snapshot returns the held captions, oldest first.
func (h *History) Snapshot() []core.Caption {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]core.Caption, len(h.items))
	copy(out, h.items)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = nil
	h.seen = make(map[string]struct{})
}
