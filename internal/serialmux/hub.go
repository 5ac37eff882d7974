package serialmux

import (
	"sync"

	"github.com/google/uuid"
)

// hub fans lines out to subscriber channels. A subscriber that falls more
// than its buffer behind misses lines rather than stalling the reader.
type hub struct {
	mu     sync.Mutex
	subs   map[string]chan string
	buffer int
	closed bool
}

func newHub(buffer int) *hub {
	return &hub{subs: make(map[string]chan string), buffer: buffer}
}

// subscribe returns a new channel. After close it returns a closed channel
// so readers never block.
func (h *hub) subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string, h.buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subs[id] = ch
	return id, ch
}

func (h *hub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
}

// broadcast delivers line to every subscriber with room for it and returns
// how many were skipped. It reports false once the hub is closed.
func (h *hub) broadcast(line string) (dropped int, open bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, false
	}
	for _, ch := range h.subs {
		select {
		case ch <- line:
		default:
			dropped++
		}
	}
	return dropped, true
}

// close closes every subscriber channel. It reports whether this call did
// the closing.
func (h *hub) close() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
	return true
}
