package refreshclient

import (
	"sort"
	"sync"
	"time"
)

// fakeClock is a manually advanced Clock for deterministic scheduling tests,
// the same approach backend/refresh/system tests use fake Kubernetes clients
// to avoid real I/O.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	timers  map[int]*fakeTimer
}

type fakeTimer struct {
	id      int
	fireAt  time.Time
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0), timers: make(map[int]*fakeTimer)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &fakeTimer{id: c.nextID, fireAt: c.now.Add(d), fn: f}
	c.timers[t.id] = t
	return t
}

// Advance moves the clock forward by d, firing any timers due in order,
// synchronously, on the calling goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fireAt.After(target) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].fireAt.Before(due[j].fireAt) })
	for _, t := range due {
		delete(c.timers, t.id)
	}
	c.mu.Unlock()

	for _, t := range due {
		if !t.stopped {
			t.fn()
		}
	}
}
