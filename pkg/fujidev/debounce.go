package fujidev

import (
	"sync"
	"time"

	"github.com/Rla102277/FUji-ai-lab/pkg/develop"
)

// A Debouncer coalesces bursts of settings changes (a slider being
// dragged) into a single call of fn, with the most recent settings, once
// the changes have stopped for the wait period.
//
// The command line tool develops once and has no use for one; it is here
// for interactive front ends that re-render a preview as sliders move.
type Debouncer struct {
	wait time.Duration
	fn   func(develop.Settings)

	mu      sync.Mutex
	timer   *time.Timer
	pending develop.Settings
	seq     uint64
	stopped bool
}

func NewDebouncer(wait time.Duration, fn func(develop.Settings)) *Debouncer {
	return &Debouncer{wait: wait, fn: fn}
}

// Trigger records s as the latest settings, and restarts the wait.
func (d *Debouncer) Trigger(s develop.Settings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.pending = s
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, func() { d.fire(seq) })
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	// A later Trigger may have raced with the timer; only the newest fires.
	if d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	s := d.pending
	d.timer = nil
	d.mu.Unlock()

	d.fn(s)
}

// Flush runs fn now with the pending settings, if there are any.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.stopped || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer.Stop()
	d.timer = nil
	d.seq++
	s := d.pending
	d.mu.Unlock()

	d.fn(s)
}

// Stop drops anything pending; later Triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
