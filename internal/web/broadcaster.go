package web

import (
	"sync"
)

// FrameBroadcaster distributes preview frames to multiple HTTP viewers.
type FrameBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

// NewFrameBroadcaster creates a new broadcaster.
func NewFrameBroadcaster() *FrameBroadcaster {
	return &FrameBroadcaster{
		clients: make(map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast frames and a cleanup
// function. The caller must call the returned cleanup when done (e.g. on
// client disconnect).
func (b *FrameBroadcaster) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 4)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Broadcast sends a frame to all subscribed viewers.
// Slow viewers miss frames (non-blocking, buffered): a preview feed has
// no use for stale frames.
func (b *FrameBroadcaster) Broadcast(frame []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- frame:
		default:
			// channel full, skip
		}
	}
}

// Viewers returns the current subscriber count.
func (b *FrameBroadcaster) Viewers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
