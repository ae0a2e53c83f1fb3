package sequence

import (
	"time"
)

// Click is one pointer press in normalized display coordinates, so the
// queue stays agnostic of the actual screen geometry. (0,0) is the top
// left corner, (1,1) the bottom right.
type Click struct {
	X, Y float64
}

// ClickQueue buffers clicks that arrive while the controller's attention
// is elsewhere. Multiple producers (touch surface, booth button) push;
// the single sequence worker polls.
type ClickQueue struct {
	ch chan Click
}

// NewClickQueue creates an empty queue.
func NewClickQueue() *ClickQueue {
	return &ClickQueue{ch: make(chan Click, 32)}
}

// Push enqueues a click without blocking. When the buffer is full the
// click is dropped; a guest hammering the screen does not need every
// press recorded.
func (q *ClickQueue) Push(c Click) {
	select {
	case q.ch <- c:
	default:
	}
}

// Poll waits up to timeout for the next click.
func (q *ClickQueue) Poll(timeout time.Duration) (Click, bool) {
	select {
	case c := <-q.ch:
		return c, true
	case <-time.After(timeout):
		return Click{}, false
	}
}

// Drain discards every pending click and reports how many were dropped.
// Called when a phase starts that must not see presses from earlier
// phases.
func (q *ClickQueue) Drain() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}

// Len reports the number of buffered clicks.
func (q *ClickQueue) Len() int {
	return len(q.ch)
}
