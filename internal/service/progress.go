package service

import (
	"sync"

	"github.com/pkritskov/shellsync/models"
)

const progressBuffer = 16

// progressHub fans SyncProgress snapshots out to UI subscribers. Publishing
// never blocks: a subscriber that stops draining its channel misses
// intermediate snapshots but always stays subscribed.
type progressHub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan models.SyncProgress
	last   models.SyncProgress
}

func newProgressHub() *progressHub {
	return &progressHub{subs: make(map[int]chan models.SyncProgress)}
}

// Subscribe returns a channel of progress snapshots and an unsubscribe
// function. The current snapshot is delivered immediately.
func (h *progressHub) Subscribe() (<-chan models.SyncProgress, func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	ch := make(chan models.SyncProgress, progressBuffer)
	h.subs[id] = ch
	ch <- h.last
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
		h.mu.Unlock()
	}
}

func (h *progressHub) Publish(p models.SyncProgress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = p
	for _, sub := range h.subs {
		select {
		case sub <- p:
		default:
		}
	}
}

func (h *progressHub) Last() models.SyncProgress {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}
