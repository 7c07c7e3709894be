package notify

import (
	"sync"
	"time"
)

// Throttle is a fixed-window counter keyed by caller. It bounds how many
// alerts one caller can trigger per window.
type Throttle struct {
	counters     map[string]*windowEntry
	mu           sync.Mutex
	maxEvents    int
	windowPeriod time.Duration
	now          func() time.Time
}

type windowEntry struct {
	count       int
	windowStart time.Time
}

// NewThrottle allows maxEvents per key per windowPeriod.
func NewThrottle(maxEvents int, windowPeriod time.Duration) *Throttle {
	return &Throttle{
		counters:     make(map[string]*windowEntry),
		maxEvents:    maxEvents,
		windowPeriod: windowPeriod,
		now:          time.Now,
	}
}

// CheckLimit counts an event for key and reports whether the limit is
// exceeded, the count in the current window and when the window resets.
func (t *Throttle) CheckLimit(key string) (bool, int, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	entry, ok := t.counters[key]

	if !ok || now.Sub(entry.windowStart) > t.windowPeriod {
		t.counters[key] = &windowEntry{count: 1, windowStart: now}
		t.prune(now)
		return false, 1, now.Add(t.windowPeriod)
	}

	entry.count++
	return entry.count > t.maxEvents, entry.count, entry.windowStart.Add(t.windowPeriod)
}

// Allow is CheckLimit reduced to a yes/no.
func (t *Throttle) Allow(key string) bool {
	exceeded, _, _ := t.CheckLimit(key)
	return !exceeded
}

// prune drops expired windows. Called with mu held.
func (t *Throttle) prune(now time.Time) {
	for key, entry := range t.counters {
		if now.Sub(entry.windowStart) > t.windowPeriod {
			delete(t.counters, key)
		}
	}
}
