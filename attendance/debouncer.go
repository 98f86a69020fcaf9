package attendance

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is how long a payload stays suppressed after admission.
const DefaultDebounceWindow = 5 * time.Second

// Debouncer suppresses repeated processing of the same raw payload within a
// fixed window. It is a client-side throttle only and knows nothing about
// the store.
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingScan
}

type pendingScan struct {
	timer *time.Timer
}

// NewDebouncer creates a Debouncer with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingScan),
	}
}

// Window returns the suppression window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// ShouldProcess admits raw unless it is already pending. Admission schedules
// an automatic Release after the window.
func (d *Debouncer) ShouldProcess(raw string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.pending[raw]; ok {
		return false
	}
	p := &pendingScan{}
	p.timer = time.AfterFunc(d.window, func() { d.expire(raw, p) })
	d.pending[raw] = p
	return true
}

// Release removes raw from the pending set.
func (d *Debouncer) Release(raw string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[raw]; ok {
		p.timer.Stop()
		delete(d.pending, raw)
	}
}

// expire only drops the entry its own timer created, so a stale timer cannot
// release a payload that was released and re-admitted in the meantime.
func (d *Debouncer) expire(raw string, p *pendingScan) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending[raw] == p {
		delete(d.pending, raw)
	}
}

// Pending returns the number of suppressed payloads.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels all release timers and clears the set.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for raw, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, raw)
	}
}

// InFlight is the single in-flight guard of a scanning device: while one
// scan is being marked no other scan may start.
type InFlight struct {
	mu   sync.Mutex
	busy bool
}

// TryAcquire takes the guard if it is free.
func (g *InFlight) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return false
	}
	g.busy = true
	return true
}

// Release frees the guard.
func (g *InFlight) Release() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
}

// Busy reports whether a scan is in flight.
func (g *InFlight) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}
