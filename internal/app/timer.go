package app

import (
	"sync"
	"time"
)

// Timer drives one-second countdown ticks for an active session. It stops on
// its own when the tick callback reports the session left in_progress, or
// when Stop is called; Stop waits for the loop to exit so no tick can fire
// against a suspended or finished session.
type Timer struct {
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewTimer builds a timer with the standard one-second interval.
func NewTimer() *Timer {
	return newTimer(time.Second)
}

func newTimer(interval time.Duration) *Timer {
	return &Timer{
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run invokes tick once per interval until tick returns false or Stop is
// called. It blocks; callers run it in a goroutine.
func (t *Timer) Run(tick func() bool) {
	defer close(t.done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			select {
			case <-t.stop:
				// Stop raced the tick; the session already left in_progress.
				return
			default:
			}
			if !tick() {
				return
			}
		}
	}
}

// Stop cancels the timer and waits for the run loop to exit. Idempotent.
func (t *Timer) Stop() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}
