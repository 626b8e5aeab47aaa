package listing

import "sync"

// Boundary turns visibility reports of the last rendered row into crossing
// events. The callback fires on each hidden-to-visible edge, so scrolling
// away and back fires again.
type Boundary struct {
	mu      sync.Mutex
	visible bool
	stopped bool
	fire    func()
}

// NewBoundary builds a boundary around fire.
func NewBoundary(fire func()) *Boundary {
	return &Boundary{fire: fire}
}

// Observe records the current visibility and reports whether it fired.
func (b *Boundary) Observe(visible bool) bool {
	b.mu.Lock()
	crossed := visible && !b.visible && !b.stopped
	b.visible = visible
	fire := b.fire
	b.mu.Unlock()

	if crossed && fire != nil {
		fire()
	}
	return crossed
}

// Stop disables the boundary permanently.
func (b *Boundary) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
}

// Stopped reports whether Stop was called.
func (b *Boundary) Stopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}
