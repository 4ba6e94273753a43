package catalog

import (
	"sync"
	"time"
)

// Change is a single file system change inside a package directory.
type Change struct {
	Path      string
	Op        string // "create", "modify", "delete", "rename"
	Timestamp time.Time
}

// debouncer collapses bursts of changes sharing a key into one emission
// after a quiet window. Editors write artifacts in several syscalls, so
// reloading on every raw event would parse half-written files.
type debouncer struct {
	window time.Duration
	emit   func(Change)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]Change
	stopped bool
}

func newDebouncer(window time.Duration, emit func(Change)) *debouncer {
	return &debouncer{
		window:  window,
		emit:    emit,
		timers:  make(map[string]*time.Timer),
		pending: make(map[string]Change),
	}
}

// feed records c under key, restarting that key's quiet window.
func (d *debouncer) feed(key string, c Change) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending[key] = c

	if t, ok := d.timers[key]; ok {
		t.Reset(d.window)
		return
	}

	d.timers[key] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		ev, ok := d.pending[key]
		delete(d.timers, key)
		delete(d.pending, key)
		d.mu.Unlock()
		if ok {
			d.emit(ev)
		}
	})
}

// stop cancels pending timers without emitting. Later feeds are no-ops.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = nil
	d.pending = nil
}
