package tasklist

import (
	"sync"
	"time"
)

// DefaultSearchDebounce is the delay between the last keystroke of the
// search box and the moment it is allowed to touch the filter criteria.
const DefaultSearchDebounce = 500 * time.Millisecond

// Debouncer delays a function call until its trigger has been quiet for a
// fixed interval. Only the search input is debounced; every new trigger
// replaces the pending one.
type Debouncer struct {
	delay time.Duration
	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a debouncer with the given delay. Non-positive
// delays fall back to DefaultSearchDebounce.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultSearchDebounce
	}
	return &Debouncer{delay: delay}
}

// Trigger schedules fn after the debounce delay, cancelling any previously
// scheduled call.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
