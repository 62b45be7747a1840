// Package scheduler provides the serialized dispatcher that every watchdog
// handler runs on, plus a virtual-clock scheduler for tests.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// DefaultQueueSize bounds the number of callbacks waiting for the dispatcher.
const DefaultQueueSize = 64

// Loop is a single-goroutine dispatcher. Timer fires are queued onto the
// same channel as posted events, so handlers never run concurrently.
//
// ScheduleOnce and Cancel are meant to be called from the dispatcher
// goroutine; a fire whose handle was cancelled before it is dequeued is
// dropped, which makes Cancel effective even after the timer expired.
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once

	mu      sync.Mutex
	next    domain.Handle
	pending map[domain.Handle]*time.Timer
}

// NewLoop creates a dispatcher with the given queue capacity.
func NewLoop(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Loop{
		queue:   make(chan func(), queueSize),
		done:    make(chan struct{}),
		pending: make(map[domain.Handle]*time.Timer),
	}
}

// C exposes the queue so an owner can multiplex it in its own select loop.
func (l *Loop) C() <-chan func() {
	return l.queue
}

// Post enqueues fn. It blocks while the queue is full and returns false once
// the loop is closed.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Run drains the queue until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

// ScheduleOnce arms a timer whose fire is posted to the queue after d.
func (l *Loop) ScheduleOnce(d time.Duration, fn func()) domain.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.next++
	h := l.next
	l.pending[h] = time.AfterFunc(d, func() {
		l.Post(func() { l.fire(h, fn) })
	})
	return h
}

// fire runs on the dispatcher and skips handles cancelled in the meantime.
func (l *Loop) fire(h domain.Handle, fn func()) {
	l.mu.Lock()
	_, ok := l.pending[h]
	delete(l.pending, h)
	l.mu.Unlock()

	if ok {
		fn()
	}
}

// Cancel stops the timer and forgets the handle.
func (l *Loop) Cancel(h domain.Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.pending[h]; ok {
		t.Stop()
		delete(l.pending, h)
	}
}

// Now returns the wall clock.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Pending returns the number of armed timers.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Close stops every timer and unblocks pending posts.
func (l *Loop) Close() {
	l.once.Do(func() {
		close(l.done)
		l.mu.Lock()
		for h, t := range l.pending {
			t.Stop()
			delete(l.pending, h)
		}
		l.mu.Unlock()
	})
}

// Ensure Loop implements domain.Scheduler.
var _ domain.Scheduler = (*Loop)(nil)
