// Package debounce provides cancellable delayed execution keyed by a
// logical channel name. Each channel holds at most one pending timer;
// scheduling again cancels the previous one.
package debounce

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers per channel into a single
// callback after a quiet period.
type Debouncer struct {
	mu     sync.Mutex
	delay  time.Duration
	timers map[string]*time.Timer
}

// New creates a debouncer with the given quiet period.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay, timers: map[string]*time.Timer{}}
}

// Trigger schedules fn to run after the quiet period, replacing any
// pending callback on the same channel. fn runs on a timer goroutine.
func (d *Debouncer) Trigger(channel string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[channel]; ok {
		t.Stop()
	}
	d.timers[channel] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, channel)
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending callback for a channel, if any.
func (d *Debouncer) Cancel(channel string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[channel]; ok {
		t.Stop()
		delete(d.timers, channel)
	}
}

// Stop cancels every pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for ch, t := range d.timers {
		t.Stop()
		delete(d.timers, ch)
	}
}
