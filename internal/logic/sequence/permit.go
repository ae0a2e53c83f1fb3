package sequence

// Permit is the single-sequence mutual-exclusion token: a binary
// semaphore expressed as a stocked one-slot channel. At most one
// sequence runs at a time; a click that fails to acquire the permit is
// queued instead of starting a second state machine.
type Permit struct {
	ch chan struct{}
}

// NewPermit creates a released permit.
func NewPermit() *Permit {
	p := &Permit{ch: make(chan struct{}, 1)}
	p.ch <- struct{}{}
	return p
}

// TryAcquire takes the permit without blocking.
func (p *Permit) TryAcquire() bool {
	select {
	case <-p.ch:
		return true
	default:
		return false
	}
}

// Release returns the permit. Releasing a free permit is a programming
// error and panics rather than silently doubling the token.
func (p *Permit) Release() {
	select {
	case p.ch <- struct{}{}:
	default:
		panic("sequence: release of a permit that was not held")
	}
}

// Held reports whether a sequence currently holds the permit.
func (p *Permit) Held() bool {
	return len(p.ch) == 0
}
