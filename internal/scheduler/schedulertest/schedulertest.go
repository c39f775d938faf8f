// Package schedulertest provides a manual Timer for scheduler tests.
package schedulertest

import (
	"sync"
	"time"

	"github.com/ogero/allocine-weekly/internal/scheduler"
)

// Timer records armed timers and fires them on demand.
type Timer struct {
	mu      sync.Mutex
	handles []*Handle
}

// Handle is a timer armed through Timer.
type Handle struct {
	Delay time.Duration

	mu      sync.Mutex
	f       func()
	stopped bool
	fired   bool
	stops   int
}

// AfterFunc implements scheduler.Timer.
func (t *Timer) AfterFunc(d time.Duration, f func()) scheduler.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := &Handle{Delay: d, f: f}
	t.handles = append(t.handles, h)
	return h
}

// Stop implements scheduler.Handle.
func (h *Handle) Stop() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stops++
	pending := !h.stopped && !h.fired
	h.stopped = true
	return pending
}

// Fire runs the callback as if the timer elapsed, even when stopped, to simulate a stop racing the fire.
func (h *Handle) Fire() {
	h.mu.Lock()
	h.fired = true
	f := h.f
	h.mu.Unlock()
	f()
}

// Stopped reports whether Stop was called.
func (h *Handle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Stops returns how many times Stop was called.
func (h *Handle) Stops() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stops
}

// Handles returns every timer armed so far, oldest first.
func (t *Timer) Handles() []*Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Handle(nil), t.handles...)
}

// Pending returns the armed timers that were neither stopped nor fired.
func (t *Timer) Pending() []*Handle {
	var pending []*Handle
	for _, h := range t.Handles() {
		h.mu.Lock()
		if !h.stopped && !h.fired {
			pending = append(pending, h)
		}
		h.mu.Unlock()
	}
	return pending
}

// Last returns the most recently armed timer, or nil.
func (t *Timer) Last() *Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.handles) == 0 {
		return nil
	}
	return t.handles[len(t.handles)-1]
}
