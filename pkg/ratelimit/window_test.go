package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }
func newFakeClock() *fakeClock               { return &fakeClock{t: time.Unix(1700000000, 0)} }

func TestWindowLimit(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow(clock, time.Second, 60)
	for i := 0; i < 60; i++ {
		if !w.Allow() {
			t.Fatalf("event %d should be admitted", i+1)
		}
	}
	if w.Allow() {
		t.Fatal("61st event within the second should be rejected")
	}
	if w.Count() != 60 {
		t.Fatalf("expected 60 live events, got %d", w.Count())
	}
}

func TestWindowSlides(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow(clock, 10*time.Minute, 30)
	for i := 0; i < 30; i++ {
		if !w.Allow() {
			t.Fatalf("event %d should be admitted", i+1)
		}
	}
	if w.Allow() {
		t.Fatal("over-limit event should be rejected")
	}
	clock.advance(10*time.Minute + time.Millisecond)
	if !w.Allow() {
		t.Fatal("events should be admitted again after the window slides")
	}
	if w.Count() != 1 {
		t.Fatalf("expected 1 live event, got %d", w.Count())
	}
}

func TestWindowStale(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow(clock, time.Second, 5)
	if !w.Stale() {
		t.Fatal("fresh window should be stale")
	}
	w.Allow()
	if w.Stale() {
		t.Fatal("window with a live event is not stale")
	}
	clock.advance(2 * time.Second)
	if !w.Stale() {
		t.Fatal("window should be stale after its span passes")
	}
}

func TestWindowPartialSlide(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow(clock, time.Second, 3)
	w.Allow()
	clock.advance(600 * time.Millisecond)
	w.Allow()
	w.Allow()
	if w.Allow() {
		t.Fatal("fourth event should be rejected")
	}
	clock.advance(500 * time.Millisecond) // first event aged out
	if !w.Allow() {
		t.Fatal("one slot should have opened")
	}
	if w.Allow() {
		t.Fatal("still two recent events plus the new one")
	}
}
