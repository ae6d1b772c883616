package persist

import (
	"sync"
	"time"
)

// debouncer implements cancel-and-reschedule coalescing: each new schedule
// within the window replaces the pending one, so only the last state before
// the window closes is ever flushed.
type debouncer struct {
	mu    sync.Mutex
	timer *time.Timer
}

func (d *debouncer) schedule(delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(delay, fn)
}

// fire cancels the pending timer and reports whether one was pending, so
// the caller can run the flush immediately.
func (d *debouncer) fire() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	stopped := d.timer.Stop()
	d.timer = nil
	return stopped
}

func (d *debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
