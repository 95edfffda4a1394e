// Package ratelimit implements the per-IP abuse limits of the session
// services as deterministic sliding event windows driven by an injected
// clock.
package ratelimit

import "time"

// Window counts events inside a sliding time span. Not safe for
// concurrent use; both registries mutate it from a single event loop.
type Window struct {
	clock Clock
	span  time.Duration
	limit int
	marks []time.Time
}

func NewWindow(clock Clock, span time.Duration, limit int) *Window {
	if clock == nil {
		clock = RealClock{}
	}
	return &Window{clock: clock, span: span, limit: limit}
}

// Allow records an event when under the limit and reports whether it
// was admitted. The event preceding the limit check is pruned first, so
// exactly `limit` events fit into any span-sized interval.
func (w *Window) Allow() bool {
	now := w.clock.Now()
	w.prune(now)
	if len(w.marks) >= w.limit {
		return false
	}
	w.marks = append(w.marks, now)
	return true
}

// Count reports the live events in the window.
func (w *Window) Count() int {
	w.prune(w.clock.Now())
	return len(w.marks)
}

// Stale reports whether the window has fully aged out and the owning
// entry can be dropped by a cleanup sweep.
func (w *Window) Stale() bool { return w.Count() == 0 }

func (w *Window) prune(now time.Time) {
	cut := now.Add(-w.span)
	i := 0
	for ; i < len(w.marks); i++ {
		if w.marks[i].After(cut) {
			break
		}
	}
	if i > 0 {
		w.marks = append(w.marks[:0], w.marks[i:]...)
	}
}
