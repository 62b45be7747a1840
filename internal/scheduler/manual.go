package scheduler

import (
	"time"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

type manualTimer struct {
	handle domain.Handle
	at     time.Time
	fn     func()
}

// Manual is a virtual-clock scheduler. Time only moves on Advance, and due
// callbacks run synchronously in deadline order (ties in scheduling order).
// It must be driven from a single goroutine.
type Manual struct {
	now    time.Time
	next   domain.Handle
	timers []manualTimer
}

// NewManual creates a scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// ScheduleOnce registers fn to run when the clock reaches now+d.
func (m *Manual) ScheduleOnce(d time.Duration, fn func()) domain.Handle {
	m.next++
	m.timers = append(m.timers, manualTimer{handle: m.next, at: m.now.Add(d), fn: fn})
	return m.next
}

// Cancel removes a pending callback.
func (m *Manual) Cancel(h domain.Handle) {
	for i, t := range m.timers {
		if t.handle == h {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	return m.now
}

// Pending returns the number of armed callbacks.
func (m *Manual) Pending() int {
	return len(m.timers)
}

// Advance moves the clock forward by d, running every callback that
// becomes due. Callbacks may schedule or cancel further callbacks.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		idx := -1
		for i, t := range m.timers {
			if t.at.After(target) {
				continue
			}
			if idx == -1 || t.at.Before(m.timers[idx].at) {
				idx = i
			}
		}
		if idx == -1 {
			break
		}
		t := m.timers[idx]
		m.timers = append(m.timers[:idx], m.timers[idx+1:]...)
		m.now = t.at
		t.fn()
	}
	m.now = target
}

// AdvanceTo moves the clock to t (no-op if t is in the past).
func (m *Manual) AdvanceTo(t time.Time) {
	if t.After(m.now) {
		m.Advance(t.Sub(m.now))
	}
}

// Ensure Manual implements domain.Scheduler.
var _ domain.Scheduler = (*Manual)(nil)
