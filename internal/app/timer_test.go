package app

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerStopsWhenTickReportsDone(t *testing.T) {
	timer := newTimer(time.Millisecond)
	var ticks int32
	done := make(chan struct{})
	go func() {
		timer.Run(func() bool {
			return atomic.AddInt32(&ticks, 1) < 3
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timer did not stop on its own")
	}
	if n := atomic.LoadInt32(&ticks); n != 3 {
		t.Fatalf("expected 3 ticks, got %d", n)
	}
	// Stop after self-exit must not block.
	timer.Stop()
}

func TestTimerStopPreventsFurtherTicks(t *testing.T) {
	timer := newTimer(time.Millisecond)
	var ticks int32
	go timer.Run(func() bool {
		atomic.AddInt32(&ticks, 1)
		return true
	})

	time.Sleep(20 * time.Millisecond)
	timer.Stop()
	after := atomic.LoadInt32(&ticks)
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&ticks); got != after {
		t.Fatalf("tick fired after Stop: %d -> %d", after, got)
	}
}
