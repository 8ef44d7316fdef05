package fetch

import (
	"sync"
	"time"
)

// Debouncer collapses rapid key changes: fire runs with the last key once no
// new key has arrived for the interval.
type Debouncer[K any] struct {
	interval time.Duration
	fire     func(K)

	mu      sync.Mutex
	timer   *time.Timer
	pending K
	seq     uint64
	armed   bool
	stopped bool
}

// NewDebouncer creates a debouncer. A non-positive interval fires immediately.
func NewDebouncer[K any](interval time.Duration, fire func(K)) *Debouncer[K] {
	return &Debouncer[K]{interval: interval, fire: fire}
}

// Trigger records key and restarts the quiet period.
func (d *Debouncer[K]) Trigger(key K) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.interval <= 0 {
		d.mu.Unlock()
		d.fire(key)
		return
	}

	d.pending = key
	d.armed = true
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() { d.expire(seq) })
	d.mu.Unlock()
}

// Flush fires the pending key now, if any.
func (d *Debouncer[K]) Flush() {
	d.mu.Lock()
	seq := d.seq
	d.mu.Unlock()
	d.expire(seq)
}

// Stop drops any pending key. Later triggers are ignored.
func (d *Debouncer[K]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.armed = false
	if d.timer != nil {
		d.timer.Stop()
	}
}

// expire fires the pending key if it is still the one armed as seq. A timer
// that lost the race with a newer Trigger finds a different seq and exits.
func (d *Debouncer[K]) expire(seq uint64) {
	d.mu.Lock()
	if !d.armed || d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	key := d.pending
	d.armed = false
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	d.fire(key)
}
