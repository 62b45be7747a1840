package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManual_FiresAtDeadline(t *testing.T) {
	m := NewManual(epoch)

	var firedAt time.Time
	m.ScheduleOnce(20*time.Second, func() { firedAt = m.Now() })

	m.Advance(19 * time.Second)
	assert.True(t, firedAt.IsZero())

	m.Advance(time.Second)
	assert.Equal(t, epoch.Add(20*time.Second), firedAt)
	assert.Equal(t, 0, m.Pending())
}

func TestManual_OrderAndTies(t *testing.T) {
	m := NewManual(epoch)

	var order []string
	m.ScheduleOnce(2*time.Second, func() { order = append(order, "b") })
	m.ScheduleOnce(time.Second, func() { order = append(order, "a") })
	m.ScheduleOnce(2*time.Second, func() { order = append(order, "c") })

	m.Advance(5 * time.Second)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, epoch.Add(5*time.Second), m.Now())
}

func TestManual_Cancel(t *testing.T) {
	m := NewManual(epoch)

	fired := false
	h := m.ScheduleOnce(time.Second, func() { fired = true })
	m.Cancel(h)
	m.Cancel(h)

	m.Advance(time.Minute)
	assert.False(t, fired)
}

// TestManual_CallbackSchedules verifies callbacks can arm follow-up timers
// that fall inside the same Advance window.
func TestManual_CallbackSchedules(t *testing.T) {
	m := NewManual(epoch)

	var times []time.Duration
	m.ScheduleOnce(time.Second, func() {
		times = append(times, m.Now().Sub(epoch))
		m.ScheduleOnce(time.Second, func() {
			times = append(times, m.Now().Sub(epoch))
		})
	})

	m.Advance(10 * time.Second)

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, times)
}

func TestManual_AdvanceTo(t *testing.T) {
	m := NewManual(epoch)

	m.AdvanceTo(epoch.Add(time.Minute))
	assert.Equal(t, epoch.Add(time.Minute), m.Now())

	m.AdvanceTo(epoch)
	assert.Equal(t, epoch.Add(time.Minute), m.Now())
}
